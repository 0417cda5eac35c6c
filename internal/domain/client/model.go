package client

import (
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
)

// Client is the owner of sold packages. Identity and contact management
// live elsewhere in the back office; the ledger resolves clients by id.
type Client struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email,omitempty"`
	Phone string `db:"phone" json:"phone,omitempty"`
	types.BaseModel
}

func (c *Client) TableName() string {
	return "clients"
}

func (c *Client) Validate() error {
	if c.Name == "" {
		return ierr.NewError("client name is required").
			WithHint("Please provide a name for the client").
			Mark(ierr.ErrValidation)
	}
	return nil
}
