package jira

import (
	"context"
	"net/url"
)

// UserByAccountID looks up a Cloud account.
func (c *Client) UserByAccountID(ctx context.Context, accountID string) (*User, error) {
	return c.userLookup(ctx, "/rest/api/3/user", "accountId", accountID)
}

// UsersByAccountID resolves several accounts in one request.
func (c *Client) UsersByAccountID(ctx context.Context, accountIDs []string) ([]User, error) {
	params := url.Values{}
	for _, id := range accountIDs {
		params.Add("accountId", id)
	}
	var resp userBulkResponse
	if err := c.getJSON(ctx, "/rest/api/3/user/bulk", params, &resp); err != nil {
		return nil, err
	}
	users := make([]User, 0, len(resp.Values))
	for _, u := range resp.Values {
		users = append(users, *MapUser(&u))
	}
	return users, nil
}

// UserByKey is the legacy Server lookup by user key.
func (c *Client) UserByKey(ctx context.Context, key string) (*User, error) {
	return c.userLookup(ctx, "/rest/api/2/user", "key", key)
}

// UserByName is the legacy Server lookup by username.
func (c *Client) UserByName(ctx context.Context, username string) (*User, error) {
	return c.userLookup(ctx, "/rest/api/2/user", "username", username)
}

func (c *Client) userLookup(ctx context.Context, path, param, value string) (*User, error) {
	params := url.Values{}
	params.Set(param, value)
	var dto UserDTO
	if err := c.getJSON(ctx, path, params, &dto); err != nil {
		return nil, err
	}
	return MapUser(&dto), nil
}
