package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client calls the watchlist service over conn. Token is sent as a bearer
// token on every call; catalog calls work without one.
type Client struct {
	conn  grpc.ClientConnInterface
	Token string
}

var _ Service = (*Client)(nil)

func NewClient(conn grpc.ClientConnInterface, token string) *Client {
	return &Client{conn: conn, Token: token}
}

func (c *Client) ListAnime(ctx context.Context, in *ListAnimeRequest) (*ListAnimeResponse, error) {
	out := new(ListAnimeResponse)
	if err := c.invoke(ctx, "ListAnime", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAnime(ctx context.Context, in *GetAnimeRequest) (*GetAnimeResponse, error) {
	out := new(GetAnimeResponse)
	if err := c.invoke(ctx, "GetAnime", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListWatchlist(ctx context.Context, in *ListWatchlistRequest) (*ListWatchlistResponse, error) {
	out := new(ListWatchlistResponse)
	if err := c.invoke(ctx, "ListWatchlist", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddWatchlist(ctx context.Context, in *AddWatchlistRequest) (*MutationResponse, error) {
	return c.mutate(ctx, "AddWatchlist", in)
}

func (c *Client) EditWatchlist(ctx context.Context, in *EditWatchlistRequest) (*MutationResponse, error) {
	return c.mutate(ctx, "EditWatchlist", in)
}

func (c *Client) RemoveWatchlist(ctx context.Context, in *RemoveWatchlistRequest) (*MutationResponse, error) {
	return c.mutate(ctx, "RemoveWatchlist", in)
}

func (c *Client) mutate(ctx context.Context, method string, in any) (*MutationResponse, error) {
	out := new(MutationResponse)
	if err := c.invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if c.Token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.Token)
	}
	return c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.CallContentSubtype(CodecName))
}
