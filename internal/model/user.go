package model

import "time"

type UserID string

// Provider names an external identity source. A non-empty provider field on
// User means the account is linked; clearing the field unlinks it.
type Provider string

const (
	ProviderFacebook Provider = "facebook"
	ProviderGoogle   Provider = "google"
	ProviderTwitter  Provider = "twitter"
	ProviderVK       Provider = "vk"
)

type CreateUserParams struct {
	Handle   string `json:"handle" form:"handle"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// ProfileParams is an explicit profile update. Password changes go through
// ChangePasswordParams; the intent is chosen by the caller, never inferred
// from which fields happen to be present.
type ProfileParams struct {
	Email     string `json:"email" form:"email"`
	Handle    string `json:"handle" form:"handle"`
	Name      string `json:"name" form:"name"`
	FirstName string `json:"firstName" form:"firstName"`
	Gender    string `json:"gender" form:"gender"`
	Age       int    `json:"age" form:"age"`
	Location  string `json:"location" form:"location"`
	Website   string `json:"website" form:"website"`
	Bio       string `json:"bio" form:"bio"`
}

type ChangePasswordParams struct {
	Password string `json:"password" form:"password"`
	Confirm  string `json:"confirm" form:"confirm"`
}

type User struct {
	ID                   UserID     `db:"ID" json:"id"`
	CreatedAt            time.Time  `db:"CreatedAt" json:"createdAt"`
	UpdatedAt            *time.Time `db:"UpdatedAt" json:"updatedAt,omitempty"`
	Email                string     `db:"Email" json:"email"`
	Handle               string     `db:"Handle" json:"handle"`
	Name                 string     `db:"Name" json:"name,omitempty"`
	FirstName            string     `db:"FirstName" json:"firstName,omitempty"`
	Password             string     `db:"Password" json:"-"`
	PasswordResetToken   *string    `db:"PasswordResetToken" json:"-"`
	PasswordResetExpires *time.Time `db:"PasswordResetExpires" json:"-"`
	Gender               string     `db:"Gender" json:"gender,omitempty"`
	Age                  int        `db:"Age" json:"age,omitempty"`
	Location             string     `db:"Location" json:"location,omitempty"`
	Website              string     `db:"Website" json:"website,omitempty"`
	Bio                  string     `db:"Bio" json:"bio,omitempty"`
	Photo                string     `db:"Photo" json:"photo,omitempty"`
	Facebook             string     `db:"Facebook" json:"-"`
	Google               string     `db:"Google" json:"-"`
	Twitter              string     `db:"Twitter" json:"-"`
	VK                   string     `db:"VK" json:"-"`
}
