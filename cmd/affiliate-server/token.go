package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/dumeirei/affiliate-backend/internal/common/jwt"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
)

var tokenUserTypes = []string{jwt.UserTypeAffiliate, jwt.UserTypeAdmin, jwt.UserTypeService}

// newTokenCmd 签发访问令牌，供管理员与订单系统接入使用
func newTokenCmd(configPath *string) *cobra.Command {
	var subject, userType string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发访问令牌",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return issueToken(cmd.OutOrStdout(), newJWTManager(&cfg.JWT), subject, userType)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "主体 ID，推广员为其 UUID")
	cmd.Flags().StringVar(&userType, "type", jwt.UserTypeAdmin, "调用方类型: affiliate/admin/service")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func issueToken(w io.Writer, manager *jwt.Manager, subject, userType string) error {
	if !utils.Contains(tokenUserTypes, userType) {
		return fmt.Errorf("unknown user type %q", userType)
	}

	token, expireAt, err := manager.GenerateToken(subject, userType)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, token)
	fmt.Fprintf(w, "expires at %s\n", time.Unix(expireAt, 0).UTC().Format(time.RFC3339))
	return nil
}
