package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	appErrors "github.com/intervita/sessiond/pkg/errors"
)

// issueRequest mirrors the issuance endpoint's contract. A request carrying a
// document payload goes out as a JSON body; one without goes out as query
// parameters, with only the non-empty names included.
type issueRequest struct {
	RoomName        string         `json:"roomName,omitempty"`
	ParticipantName string         `json:"participantName,omitempty"`
	ResumeData      map[string]any `json:"resumeData,omitempty"`
}

type credential struct {
	Identity    string `json:"identity"`
	AccessToken string `json:"accessToken"`
}

type issueClient struct {
	endpoint   string
	httpClient *http.Client
}

func newIssueClient(endpoint string) *issueClient {
	return &issueClient{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
	}
}

func (c *issueClient) issue(ctx context.Context, req issueRequest) (*credential, error) {
	if c.endpoint == "" {
		return nil, appErrors.NewConfiguration("token endpoint is not configured")
	}

	var httpReq *http.Request
	var err error

	if req.ResumeData != nil {
		body, marshalErr := json.Marshal(req)
		if marshalErr != nil {
			return nil, appErrors.Wrap(marshalErr, "encode credential request")
		}

		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err == nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
	} else {
		params := url.Values{}
		if req.RoomName != "" {
			params.Set("roomName", req.RoomName)
		}
		if req.ParticipantName != "" {
			params.Set("participantName", req.ParticipantName)
		}

		endpoint := c.endpoint
		if encoded := params.Encode(); encoded != "" {
			endpoint += "?" + encoded
		}
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, "build credential request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, appErrors.ErrUpstream.WithInternal(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.ErrUpstream.WithInternal(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var cred credential
		if err := json.Unmarshal(raw, &cred); err != nil {
			return nil, appErrors.ErrUpstream.WithInternal(err)
		}
		if cred.AccessToken == "" {
			return nil, appErrors.ErrUpstream.WithInternal(fmt.Errorf("issuance returned no token"))
		}
		return &cred, nil

	case resp.StatusCode == http.StatusBadRequest:
		var failure struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &failure); err == nil && failure.Error != "" {
			return nil, appErrors.NewValidation(failure.Error)
		}
		return nil, appErrors.NewValidation("credential request rejected")

	default:
		return nil, appErrors.ErrUpstream.WithInternal(
			fmt.Errorf("issuance failed with status %d", resp.StatusCode))
	}
}
