/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const DefaultAPIURL = "http://jservice.io/api"

// Client talks to a jService-compatible trivia API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    hc,
	}
}

// CategoryAt returns the id of the single category listed at offset.
func (c *Client) CategoryAt(ctx context.Context, offset int) (int, error) {
	q := url.Values{}
	q.Set("count", "1")
	q.Set("offset", strconv.Itoa(offset))

	var summaries []struct {
		ID int `json:"id"`
	}
	if err := c.get(ctx, "/categories", q, &summaries); err != nil {
		return 0, err
	}

	if len(summaries) == 0 {
		return 0, fmt.Errorf("%w %d", ErrNoCategory, offset)
	}

	return summaries[0].ID, nil
}

// Category fetches a category and its raw clues by id.
func (c *Client) Category(ctx context.Context, id int) (RawCategory, error) {
	q := url.Values{}
	q.Set("id", strconv.Itoa(id))

	var cat RawCategory
	if err := c.get(ctx, "/category", q, &cat); err != nil {
		return RawCategory{}, err
	}

	return cat, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dst any) error {
	reqURL := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{URL: reqURL, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}
