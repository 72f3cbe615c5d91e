package migration

import (
	"context"
	"time"

	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	"gorm.io/gorm"
)

// PromoteAdmins grants the admin role to existing accounts listed in
// AUTH_ADMIN_EMAILS. Accounts created later get the role on first login.
func PromoteAdmins(ctx context.Context, conn *gorm.DB, emails []string, now time.Time) (int64, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	res := conn.WithContext(ctx).Exec(
		`UPDATE users SET role = ?, updated_at = ?
		 WHERE email IN ? AND role <> ?`,
		userdomain.RoleAdmin,
		now,
		emails,
		userdomain.RoleAdmin,
	)
	return res.RowsAffected, res.Error
}
