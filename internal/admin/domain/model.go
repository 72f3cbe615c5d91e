package domain

import (
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	"github.com/smallbiznis/privatedrops/pkg/db/pagination"
)

type ListUsersResponse struct {
	Users    []userdomain.User   `json:"users"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type ListMediaResponse struct {
	Media    []mediadomain.Media `json:"media"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type ListViewsResponse struct {
	Views    []mediadomain.View  `json:"views"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

// UserDetail is a creator together with everything they uploaded.
type UserDetail struct {
	User  *userdomain.User    `json:"user"`
	Media []mediadomain.Media `json:"media"`
}
