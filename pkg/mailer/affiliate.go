package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"text/template"
)

// 模板名
const (
	TemplateApproval  = "affiliate_approval"
	TemplateRejection = "affiliate_rejection"
)

var affiliateTemplates = template.Must(template.New("affiliate").Parse(`
{{define "affiliate_approval"}}Hi {{.FullName}},

Your affiliate application has been approved.

Your referral code: {{.ReferralCode}}

Share it with your audience. Every order placed with this code earns you a commission.
{{end}}
{{define "affiliate_rejection"}}Hi {{.FullName}},

Thank you for applying to our affiliate program. Unfortunately we could not approve your application.

Reason: {{.Reason}}
{{end}}
`))

// AffiliateMailer 推广员通知邮件
type AffiliateMailer struct {
	sender Sender
	from   string
}

// NewAffiliateMailer 创建推广员通知邮件发送器
func NewAffiliateMailer(sender Sender, fromName, fromEmail string) *AffiliateMailer {
	from := fromEmail
	if fromName != "" && fromEmail != "" {
		from = (&mail.Address{Name: fromName, Address: fromEmail}).String()
	}
	return &AffiliateMailer{sender: sender, from: from}
}

// SendApprovalEmail 发送审核通过邮件
func (m *AffiliateMailer) SendApprovalEmail(ctx context.Context, email, fullName, referralCode string) error {
	body, err := render(TemplateApproval, map[string]string{
		"FullName":     fullName,
		"ReferralCode": referralCode,
	})
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, &Message{
		From:     m.from,
		To:       email,
		Subject:  "Your affiliate application has been approved",
		Body:     body,
		Template: TemplateApproval,
	})
}

// SendRejectionEmail 发送申请被拒邮件
func (m *AffiliateMailer) SendRejectionEmail(ctx context.Context, email, fullName, reason string) error {
	body, err := render(TemplateRejection, map[string]string{
		"FullName": fullName,
		"Reason":   reason,
	})
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, &Message{
		From:     m.from,
		To:       email,
		Subject:  "Update on your affiliate application",
		Body:     body,
		Template: TemplateRejection,
	})
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := affiliateTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("渲染邮件模板 %s 失败: %w", name, err)
	}
	return buf.String(), nil
}
