package entity

// Operator is an API client allowed to call the admin endpoints.
type Operator struct {
	Name  string `yaml:"name" json:"name"`
	Token string `yaml:"token" json:"-"`
}
