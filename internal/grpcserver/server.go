package grpcserver

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"animehub/internal/catalog"
	"animehub/internal/session"
	synchub "animehub/internal/sync"
	"animehub/internal/watchlist"
	"animehub/pkg/models"
)

// Server implements Service over the same catalog source, store registry
// and event hub as the HTTP API. Watchlist calls carry the session token in
// the "authorization" metadata key.
type Server struct {
	Catalog catalog.Source
	Stores  *watchlist.Registry
	Tokens  session.TokenService
	Hub     watchlist.Publisher
	Logger  *zap.Logger
}

func NewServer(src catalog.Source, stores *watchlist.Registry, tokens session.TokenService, hub watchlist.Publisher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Catalog: src, Stores: stores, Tokens: tokens, Hub: hub, Logger: logger}
}

// NewGRPCServer builds a grpc.Server serving svc plus the standard health
// service, with every call logged.
func NewGRPCServer(svc *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(logCalls(svc.Logger)))
	gs := grpc.NewServer(opts...)
	RegisterService(gs, svc)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

func (s *Server) ListAnime(_ context.Context, req *ListAnimeRequest) (*ListAnimeResponse, error) {
	entries, err := s.catalog()
	if err != nil {
		return nil, err
	}

	q := catalog.Query{Q: req.Q, Types: req.Types, Sources: req.Sources, Genres: req.Genres, MaxEpisodes: req.MaxEpisodes}
	if req.ScoreMin != nil || req.ScoreMax != nil {
		r := catalog.Range{Min: 0, Max: 10}
		if req.ScoreMin != nil {
			r.Min = *req.ScoreMin
		}
		if req.ScoreMax != nil {
			r.Max = *req.ScoreMax
		}
		q.ScoreRange = &r
	}

	limit, offset := catalog.ClampPage(req.Limit, req.Offset)
	view := catalog.Explore(entries, q, catalog.ClampBins(req.Bins))
	return &ListAnimeResponse{
		Total:          len(view.Rows),
		Limit:          limit,
		Offset:         offset,
		Items:          catalog.Page(view.Rows, limit, offset),
		Counts:         view.Counts,
		ScoreHistogram: view.ScoreHistogram,
	}, nil
}

func (s *Server) GetAnime(_ context.Context, req *GetAnimeRequest) (*GetAnimeResponse, error) {
	entries, err := s.catalog()
	if err != nil {
		return nil, err
	}
	e, ok := catalog.Lookup(entries, req.MalID)
	if !ok {
		return nil, status.Error(codes.NotFound, "not in catalog")
	}
	return &GetAnimeResponse{Anime: e}, nil
}

func (s *Server) ListWatchlist(ctx context.Context, req *ListWatchlistRequest) (*ListWatchlistResponse, error) {
	var want models.WatchStatus
	if strings.TrimSpace(req.Status) != "" {
		st, ok := models.ParseWatchStatus(req.Status)
		if !ok {
			return nil, status.Error(codes.InvalidArgument, "invalid status filter")
		}
		want = st
	}

	store, _, release, err := s.store(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	// A catalog failure lists the watchlist unjoined.
	entries, err := s.Catalog.Catalog()
	if err != nil {
		s.Logger.Warn("catalog unavailable for join", zap.Error(err))
	}
	rows := store.Enrich(entries)
	if want != "" {
		filtered := rows[:0]
		for _, r := range rows {
			if r.Status == want {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	limit, offset := catalog.ClampPage(req.Limit, req.Offset)
	return &ListWatchlistResponse{Total: len(rows), Items: catalog.Page(rows, limit, offset)}, nil
}

func (s *Server) AddWatchlist(ctx context.Context, req *AddWatchlistRequest) (*MutationResponse, error) {
	if req.MalID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "mal_id must be a positive integer")
	}
	store, owner, release, err := s.store(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	entries, err := s.catalog()
	if err != nil {
		return nil, err
	}
	anime, ok := catalog.Lookup(entries, req.MalID)
	if !ok {
		return nil, status.Error(codes.NotFound, "not in catalog")
	}

	res, err := store.Add(ctx, anime.ID, anime.Title)
	if err != nil {
		return nil, s.toStatus(err)
	}
	if res == watchlist.Added {
		s.publish(synchub.WatchlistEvent{Type: synchub.EventAdd, Owner: owner, CatalogID: anime.ID, Status: string(models.StatusNotStarted)})
	}
	return mutation(store, res, anime.ID), nil
}

func (s *Server) EditWatchlist(ctx context.Context, req *EditWatchlistRequest) (*MutationResponse, error) {
	patch := models.WatchlistPatch{
		PersonalRating: req.PersonalRating,
		ClearRating:    req.ClearRating,
		Notes:          req.Notes,
		Progress:       req.Progress,
	}
	if req.Status != nil {
		st, ok := models.ParseWatchStatus(*req.Status)
		if !ok {
			return nil, status.Error(codes.InvalidArgument, watchlist.ErrInvalidStatus.Error())
		}
		patch.Status = &st
	}

	store, owner, release, err := s.store(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := store.Edit(ctx, req.MalID, patch)
	if err != nil {
		return nil, s.toStatus(err)
	}
	if res == watchlist.NotFound {
		return nil, status.Error(codes.NotFound, res.String())
	}
	out := mutation(store, res, req.MalID)
	s.publish(synchub.WatchlistEvent{Type: synchub.EventUpdate, Owner: owner, CatalogID: req.MalID, Status: string(out.Item.Status)})
	return out, nil
}

func (s *Server) RemoveWatchlist(ctx context.Context, req *RemoveWatchlistRequest) (*MutationResponse, error) {
	store, owner, release, err := s.store(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := store.Remove(ctx, req.MalID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	if res == watchlist.NotFound {
		return nil, status.Error(codes.NotFound, res.String())
	}
	s.publish(synchub.WatchlistEvent{Type: synchub.EventRemove, Owner: owner, CatalogID: req.MalID})
	return &MutationResponse{Result: res.String()}, nil
}

// store resolves the caller's session from metadata and acquires its
// watchlist.
func (s *Server) store(ctx context.Context) (*watchlist.Store, string, func(), error) {
	md, _ := metadata.FromIncomingContext(ctx)
	vals := md.Get("authorization")
	if len(vals) == 0 || !strings.HasPrefix(strings.ToLower(vals[0]), "bearer ") {
		return nil, "", nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	claims, err := s.Tokens.Parse(strings.TrimSpace(vals[0][len("Bearer "):]))
	if err != nil {
		return nil, "", nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	store, release, err := s.Stores.Acquire(ctx, claims.SessionID)
	if err != nil {
		s.Logger.Error("open watchlist", zap.String("owner", claims.SessionID), zap.Error(err))
		return nil, "", nil, status.Error(codes.Internal, "watchlist unavailable")
	}
	return store, claims.SessionID, release, nil
}

func (s *Server) catalog() ([]models.CatalogEntry, error) {
	entries, err := s.Catalog.Catalog()
	if err != nil {
		s.Logger.Error("load catalog", zap.Error(err))
		return nil, status.Error(codes.Unavailable, "catalog unavailable")
	}
	return entries, nil
}

func (s *Server) publish(ev synchub.WatchlistEvent) {
	if s.Hub != nil {
		s.Hub.Publish(ev)
	}
}

func (s *Server) toStatus(err error) error {
	var verr *watchlist.ValidationError
	if errors.As(err, &verr) {
		return status.Error(codes.InvalidArgument, verr.Reason.Error())
	}
	s.Logger.Error("watchlist operation", zap.Error(err))
	return status.Error(codes.Internal, "save failed")
}

func mutation(store *watchlist.Store, res watchlist.Result, id int) *MutationResponse {
	out := &MutationResponse{Result: res.String()}
	if it, ok := store.Get(id); ok {
		out.Item = &it
	}
	return out
}

func logCalls(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc call",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}
