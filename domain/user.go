package domain

import (
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
)

type User struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      _const.Role `json:"role"`
	IsOnline  bool        `json:"isOnline"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
