package api

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/entitykeeper/internal/client/models"
)

// AuthClient calls the authentication endpoints. It must not be wired
// through a Gateway.
type AuthClient struct {
	baseClient
}

func NewAuthClient(apiAddress string, httpClient *http.Client) *AuthClient {
	return &AuthClient{baseClient: newBaseClient(apiAddress, httpClient, authKinds)}
}

// SignIn exchanges credentials for a profile and tokens. A rejected password
// is common.ErrInvalidCredentials; the *Error carries the server message.
func (c *AuthClient) SignIn(ctx context.Context, username, password string) (*models.SignInResponse, error) {
	resp := &models.SignInResponse{}
	err := c.executeRequest(ctx, outboundRequest{
		method:     http.MethodPost,
		path:       "auth/signin",
		reqBodyObj: models.SignInRequest{Username: username, Password: password},
		respObj:    resp,
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// SignUp registers an account and returns the server's confirmation.
func (c *AuthClient) SignUp(ctx context.Context, req models.SignUpRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	resp := &messageResponse{}
	err := c.executeRequest(ctx, outboundRequest{
		method:       http.MethodPost,
		path:         "auth/signup",
		reqBodyObj:   req,
		successCodes: []int{http.StatusOK, http.StatusCreated},
		respObj:      resp,
	})
	return resp.Message, err
}

func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (*models.RefreshResponse, error) {
	resp := &models.RefreshResponse{}
	err := c.executeRequest(ctx, outboundRequest{
		method:     http.MethodPost,
		path:       "auth/refreshtoken",
		reqBodyObj: models.RefreshRequest{RefreshToken: refreshToken},
		respObj:    resp,
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
