package cmd

import (
	"fmt"
	"log"

	"musichelper/config"
	"musichelper/core/auth"
	"musichelper/db"
	"musichelper/repository"

	"github.com/spf13/cobra"
)

var resetAdminPassword string

var resetAdminCmd = &cobra.Command{
	Use:   "resetadmin",
	Short: "重置admin账号密码",
	Long:  `重置内置admin账号的密码。未指定 --password 时恢复为默认密码。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("无法连接到数据库: %v", err)
		}
		defer db.CloseGormDB()

		userRepo := repository.NewGormUserRepository(db.GormDB)
		admin, err := userRepo.GetUserByUsername("admin")
		if err != nil {
			log.Fatalf("查询admin账号失败: %v", err)
		}
		if admin == nil {
			log.Fatal("admin账号不存在，请先启动一次服务器")
		}

		password := resetAdminPassword
		if password == "" {
			password = "admin123"
		}
		if len(password) < 6 {
			log.Fatal("密码长度至少6位")
		}

		hashed, err := auth.HashPassword(password)
		if err != nil {
			log.Fatalf("密码加密失败: %v", err)
		}
		if err := userRepo.UpdatePassword(admin.ID, hashed); err != nil {
			log.Fatalf("更新密码失败: %v", err)
		}

		fmt.Println("admin密码已重置")
	},
}

func init() {
	rootCmd.AddCommand(resetAdminCmd)

	resetAdminCmd.Flags().StringVarP(&resetAdminPassword, "password", "p", "", "新密码，留空恢复默认")
}
