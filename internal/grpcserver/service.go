package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"animehub/internal/catalog"
	"animehub/pkg/models"
)

const ServiceName = "animehub.Watchlist"

type ListAnimeRequest struct {
	Q           string   `json:"q"`
	Types       []string `json:"types"`
	Sources     []string `json:"sources"`
	Genres      []string `json:"genres"`
	ScoreMin    *float64 `json:"score_min"`
	ScoreMax    *float64 `json:"score_max"`
	MaxEpisodes *int     `json:"max_episodes"`
	Limit       int      `json:"limit"`
	Offset      int      `json:"offset"`
	Bins        int      `json:"bins"`
}

type ListAnimeResponse struct {
	Total          int                        `json:"total"`
	Limit          int                        `json:"limit"`
	Offset         int                        `json:"offset"`
	Items          []models.CatalogEntry      `json:"items"`
	Counts         map[string][]catalog.Count `json:"counts"`
	ScoreHistogram []catalog.Bin              `json:"score_histogram"`
}

type GetAnimeRequest struct {
	MalID int `json:"mal_id"`
}

type GetAnimeResponse struct {
	Anime models.CatalogEntry `json:"anime"`
}

type ListWatchlistRequest struct {
	Status string `json:"status"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type ListWatchlistResponse struct {
	Total int                    `json:"total"`
	Items []models.EnrichedEntry `json:"items"`
}

type AddWatchlistRequest struct {
	MalID int `json:"mal_id"`
}

type EditWatchlistRequest struct {
	MalID          int     `json:"mal_id"`
	Status         *string `json:"status"`
	PersonalRating *int    `json:"personal_rating"`
	ClearRating    bool    `json:"clear_rating"`
	Notes          *string `json:"notes"`
	Progress       *string `json:"progress"`
}

type RemoveWatchlistRequest struct {
	MalID int `json:"mal_id"`
}

// MutationResponse reports a watchlist result and, when the entry still
// exists, its stored state.
type MutationResponse struct {
	Result string                 `json:"result"`
	Item   *models.WatchlistEntry `json:"item,omitempty"`
}

// Service is the animehub.Watchlist gRPC service.
type Service interface {
	ListAnime(context.Context, *ListAnimeRequest) (*ListAnimeResponse, error)
	GetAnime(context.Context, *GetAnimeRequest) (*GetAnimeResponse, error)
	ListWatchlist(context.Context, *ListWatchlistRequest) (*ListWatchlistResponse, error)
	AddWatchlist(context.Context, *AddWatchlistRequest) (*MutationResponse, error)
	EditWatchlist(context.Context, *EditWatchlistRequest) (*MutationResponse, error)
	RemoveWatchlist(context.Context, *RemoveWatchlistRequest) (*MutationResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListAnime", Service.ListAnime),
		unary("GetAnime", Service.GetAnime),
		unary("ListWatchlist", Service.ListWatchlist),
		unary("AddWatchlist", Service.AddWatchlist),
		unary("EditWatchlist", Service.EditWatchlist),
		unary("RemoveWatchlist", Service.RemoveWatchlist),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "animehub/watchlist",
}

func RegisterService(s grpc.ServiceRegistrar, svc Service) {
	s.RegisterService(&ServiceDesc, svc)
}

func unary[Req, Resp any](name string, call func(Service, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(Service), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(Service), ctx, req.(*Req))
			})
		},
	}
}
