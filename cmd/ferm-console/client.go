package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"cacao-server/entities"

	"github.com/go-resty/resty/v2"
)

// errNoData is returned when a fermentation has no measurements yet.
var errNoData = errors.New("no measurements yet")

type fermentation struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	DeviceSerial  string     `json:"device_serial_number"`
	TotalQuantity float64    `json:"total_quantity"`
}

type apiError struct {
	Message string `json:"error"`
}

// apiClient talks to the cacao server REST API.
type apiClient struct {
	http *resty.Client
}

func newAPIClient(baseURL string) *apiClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetError(&apiError{})
	return &apiClient{http: client}
}

func (c *apiClient) Login(email, password string) error {
	var session struct {
		Token string `json:"token"`
	}
	resp, err := c.http.R().
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&session).
		Post("/api/login")
	if err := check(resp, err); err != nil {
		return err
	}
	c.http.SetAuthToken(session.Token)
	return nil
}

func (c *apiClient) Fermentations() ([]fermentation, error) {
	var out struct {
		Data []fermentation `json:"data"`
	}
	resp, err := c.http.R().SetResult(&out).Get("/api/fermentations/summary")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *apiClient) Latest(id string) (*entities.Snapshot, error) {
	var out struct {
		Data entities.Snapshot `json:"data"`
	}
	resp, err := c.http.R().
		SetPathParam("id", id).
		SetResult(&out).
		Get("/api/fermentations/{id}/measurements/latest")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return nil, errNoData
	}
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *apiClient) SetStatus(id string, status entities.Status) (*fermentation, error) {
	var out struct {
		Data fermentation `json:"data"`
	}
	resp, err := c.http.R().
		SetPathParam("id", id).
		SetBody(map[string]any{"status": status}).
		SetResult(&out).
		Put("/api/fermentations/{id}/status")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*apiError); ok && e.Message != "" {
			return fmt.Errorf("%s (%d)", e.Message, resp.StatusCode())
		}
		return fmt.Errorf("server returned %d", resp.StatusCode())
	}
	return nil
}
