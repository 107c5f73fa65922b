package proto

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/config"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/service"
)

type RecipesServerImpl struct {
	accounts    *service.Accounts
	memberships *service.Memberships
	links       *service.ShortLinks
	logger      *zap.SugaredLogger
}

func NewRecipesServer(accounts *service.Accounts, memberships *service.Memberships, links *service.ShortLinks, logger *zap.SugaredLogger) *RecipesServerImpl {
	return &RecipesServerImpl{
		accounts:    accounts,
		memberships: memberships,
		links:       links,
		logger:      logger,
	}
}

func NewGRPCServer(lc fx.Lifecycle, cfg *config.Config, instance *RecipesServerImpl, logger *zap.SugaredLogger) *grpc.Server {
	grpcServer := grpc.NewServer()
	RegisterRecipesServer(grpcServer, instance)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			lis, err := net.Listen("tcp", cfg.Host+":"+cfg.GRPCPort)
			if err != nil {
				return errors.Wrap(err, "listen grpc")
			}
			logger.Infow("starting GRPC server", "listen", lis.Addr().String())

			go func() {
				if err := grpcServer.Serve(lis); err != nil {
					logger.Errorw("grpc server stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping GRPC server.")
			grpcServer.GracefulStop()
			return nil
		},
	})

	return grpcServer
}

func (s *RecipesServerImpl) GetShortLink(ctx context.Context, req *wrapperspb.UInt64Value) (*wrapperspb.StringValue, error) {
	link, err := s.links.GetOrCreate(ctx, req.GetValue())
	if err != nil {
		return nil, s.status(err)
	}
	return wrapperspb.String(s.links.ShortURL(link.Code)), nil
}

func (s *RecipesServerImpl) ResolveShortLink(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	fullURL, err := s.links.Resolve(ctx, req.GetValue())
	if err != nil {
		return nil, s.status(err)
	}
	return wrapperspb.String(fullURL), nil
}

func (s *RecipesServerImpl) ShoppingList(_ *emptypb.Empty, stream ShoppingListStream) error {
	ctx := stream.Context()
	user, err := s.authenticate(ctx)
	if err != nil {
		return s.status(err)
	}

	for line, err := range s.memberships.ShoppingListText(ctx, user) {
		if err != nil {
			return s.status(err)
		}
		if err := stream.Send(wrapperspb.String(line)); err != nil {
			return err
		}
	}
	return nil
}

func (s *RecipesServerImpl) authenticate(ctx context.Context) (models.User, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(TokenMetadataKey)
	if len(values) == 0 {
		return models.User{}, models.ErrUnauthorized
	}
	return s.accounts.Authenticate(ctx, values[0])
}

func (s *RecipesServerImpl) status(err error) error {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		s.logger.Errorw("grpc call failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}
