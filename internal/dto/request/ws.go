package request

// WSMessage is one client frame. Fields are flat so every action reads
// from the same shape.
type WSMessage struct {
	Action          string `json:"action"`
	Token           string `json:"token,omitempty"`
	Username        string `json:"username,omitempty"`
	Password        string `json:"password,omitempty"`
	ConfirmPassword string `json:"confirm_password,omitempty"`
	OldPassword     string `json:"old_password,omitempty"`
	NewPassword     string `json:"new_password,omitempty"`
}

func (m *WSMessage) RegisterRequest() *RegisterRequest {
	return &RegisterRequest{
		Username:        m.Username,
		Password:        m.Password,
		ConfirmPassword: m.ConfirmPassword,
	}
}

func (m *WSMessage) LoginRequest(ip string) *LoginRequest {
	return &LoginRequest{
		Username:  m.Username,
		Password:  m.Password,
		IPAddress: ip,
	}
}

func (m *WSMessage) ChangePasswordRequest() *ChangePasswordRequest {
	return &ChangePasswordRequest{
		OldPassword:     m.OldPassword,
		NewPassword:     m.NewPassword,
		ConfirmPassword: m.ConfirmPassword,
	}
}

func (m *WSMessage) DeleteAccountRequest() *DeleteAccountRequest {
	return &DeleteAccountRequest{Password: m.Password}
}
