package models

type Customer struct {
	CustomerID string  `json:"customerId"`
	Email      *string `json:"email,omitempty"`
	CreatedTs  *string `json:"createdTs,omitempty"`
}

func (c *Customer) Validate() error {
	if err := requireText("customerId", c.CustomerID); err != nil {
		return err
	}
	if err := optionalText("email", c.Email); err != nil {
		return err
	}
	return optionalTimestamp("createdTs", c.CreatedTs)
}
