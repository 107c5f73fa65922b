package transport

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/config"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/metrics"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/service"
)

const (
	userKey      = "user"
	tokenHeader  = "x-token"
	maxPageLimit = 100
)

type (
	RegisterReq struct {
		Email     string `json:"email" validate:"required,email"`
		Username  string `json:"username" validate:"required,max=150"`
		FirstName string `json:"first_name" validate:"max=150"`
		LastName  string `json:"last_name" validate:"max=150"`
		Password  string `json:"password" validate:"required,min=8"`
	}

	LoginReq struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	IngredientAmountReq struct {
		ID     uint64 `json:"id"`
		Amount int    `json:"amount"`
	}

	RecipeReq struct {
		Name        string                `json:"name" validate:"required"`
		Text        string                `json:"text" validate:"required"`
		Image       *string               `json:"image"`
		CookingTime int                   `json:"cooking_time"`
		Ingredients []IngredientAmountReq `json:"ingredients"`
		Tags        []uint64              `json:"tags"`
	}

	CustomValidator struct {
		validator *validator.Validate
	}

	Services struct {
		fx.In

		Accounts    *service.Accounts
		Catalog     *service.Catalog
		Recipes     *service.Recipes
		Memberships *service.Memberships
		Follows     *service.Follows
		ShortLinks  *service.ShortLinks
	}

	HTTPServer struct {
		svc      Services
		metrics  *metrics.Metrics
		logger   *zap.SugaredLogger
		pageSize int
		rate     float64
	}
)

func New(svc Services, m *metrics.Metrics, cfg *config.Config, logger *zap.SugaredLogger) *HTTPServer {
	return &HTTPServer{
		svc:      svc,
		metrics:  m,
		logger:   logger,
		pageSize: cfg.PageSize,
		rate:     cfg.RateLimit,
	}
}

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, svc Services, m *metrics.Metrics, logger *zap.SugaredLogger) *HTTPServer {
	instance := New(svc, m, cfg, logger)
	e := instance.Echo()

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				listen := cfg.Host + ":" + cfg.Port
				logger.Infow("starting HTTP server", "listen", listen)
				if err := e.Start(listen); err != nil && err != http.ErrServerClosed {
					logger.Fatalw("shutting down the server", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return e.Shutdown(ctx)
		},
	})

	return instance
}

// Echo builds the router with every route and middleware attached.
func (s *HTTPServer) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(s.requestLogger())
	if s.logger.Desugar().Core().Enabled(zap.DebugLevel) {
		e.Use(middleware.BodyDump(func(c echo.Context, reqBody, _ []byte) {
			s.logger.Debugw("request body", "path", c.Path(), "body", string(censorBody(reqBody)))
		}))
	}
	if s.metrics != nil {
		e.Use(s.metrics.Middleware)
		e.GET("/metrics", s.metrics.Handler())
	}
	if s.rate > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(s.rate))))
	}
	e.Use(s.AuthMiddleware)

	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	authG := e.Group("/auth")
	authG.POST("/register", s.Register)
	authG.POST("/login", s.Login)

	userG := e.Group("/users")
	userG.GET("/me", s.Me, RequireUser)
	userG.GET("/subscriptions", s.Subscriptions, RequireUser)
	userG.GET("/:id", s.UserGet)
	userG.POST("/:id/subscribe", s.Subscribe, RequireUser)
	userG.DELETE("/:id/subscribe", s.Unsubscribe, RequireUser)

	ingredientG := e.Group("/ingredients")
	ingredientG.GET("", s.IngredientList)
	ingredientG.GET("/:id", s.IngredientGet)

	tagG := e.Group("/tags")
	tagG.GET("", s.TagList)
	tagG.GET("/:id", s.TagGet)

	recipeG := e.Group("/recipes")
	recipeG.GET("", s.RecipeList)
	recipeG.POST("", s.RecipeCreate, RequireUser)
	recipeG.GET("/download_shopping_cart", s.DownloadShoppingCart, RequireUser)
	recipeG.GET("/:id", s.RecipeGet)
	recipeG.PATCH("/:id", s.RecipeUpdate, RequireUser)
	recipeG.DELETE("/:id", s.RecipeDelete, RequireUser)
	recipeG.GET("/:id/get-link", s.RecipeShortLink)
	recipeG.POST("/:id/favorite", s.membershipAdd(models.RelationFavorite), RequireUser)
	recipeG.DELETE("/:id/favorite", s.membershipRemove(models.RelationFavorite), RequireUser)
	recipeG.POST("/:id/shopping_cart", s.membershipAdd(models.RelationCart), RequireUser)
	recipeG.DELETE("/:id/shopping_cart", s.membershipRemove(models.RelationCart), RequireUser)

	e.GET("/s/:code", s.ShortLinkRedirect)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	})

	return e
}

func (s *HTTPServer) Register(c echo.Context) error {
	req := RegisterReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	account, err := s.svc.Accounts.Register(c.Request().Context(), service.Registration{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		return s.fail(c, err)
	}

	resp := struct {
		ID    uint64 `json:"id"`
		Token string `json:"token"`
	}{
		ID:    account.ID,
		Token: account.Token,
	}
	return c.JSON(http.StatusCreated, &resp)
}

func (s *HTTPServer) Login(c echo.Context) error {
	req := LoginReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := s.svc.Accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return s.fail(c, err)
	}

	resp := struct {
		Token string `json:"token"`
	}{
		Token: token,
	}
	return c.JSON(http.StatusOK, &resp)
}

func (s *HTTPServer) Me(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserResp(models.Author{User: *user}))
}

func (s *HTTPServer) UserGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	author, err := s.svc.Accounts.GetUser(c.Request().Context(), viewer(c), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newUserResp(author))
}

func (s *HTTPServer) Subscribe(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	author, err := s.svc.Follows.Follow(c.Request().Context(), *user, id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, newUserResp(author))
}

func (s *HTTPServer) Unsubscribe(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	if err := s.svc.Follows.Unfollow(c.Request().Context(), *user, id); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) Subscriptions(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}
	page, limit, err := s.pagination(c)
	if err != nil {
		return err
	}
	recipesLimit, err := queryInt(c, "recipes_limit", 0)
	if err != nil {
		return err
	}

	subs, err := s.svc.Follows.Subscriptions(c.Request().Context(), *user, page, limit, recipesLimit)
	if err != nil {
		return s.fail(c, err)
	}

	resp := PageResp[SubscriptionResp]{Count: subs.Count, Results: make([]SubscriptionResp, len(subs.Items))}
	for i := range subs.Items {
		resp.Results[i] = newSubscriptionResp(subs.Items[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) IngredientList(c echo.Context) error {
	ingredients, err := s.svc.Catalog.ListIngredients(c.Request().Context(), c.QueryParam("name"))
	if err != nil {
		return s.fail(c, err)
	}

	resp := make([]IngredientResp, len(ingredients))
	for i := range ingredients {
		resp[i] = newIngredientResp(ingredients[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) IngredientGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	ingredient, err := s.svc.Catalog.GetIngredient(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newIngredientResp(ingredient))
}

func (s *HTTPServer) TagList(c echo.Context) error {
	tags, err := s.svc.Catalog.ListTags(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}

	resp := make([]TagResp, len(tags))
	for i := range tags {
		resp[i] = newTagResp(tags[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) TagGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	tag, err := s.svc.Catalog.GetTag(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newTagResp(tag))
}

func (s *HTTPServer) RecipeList(c echo.Context) error {
	page, limit, err := s.pagination(c)
	if err != nil {
		return err
	}
	filter := models.RecipeFilter{
		TagSlugs: c.QueryParams()["tags"],
		Page:     page,
		Limit:    limit,
	}
	if v := c.QueryParam("author"); v != "" {
		if filter.AuthorID, err = strconv.ParseUint(v, 10, 64); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid query param 'author'")
		}
	}
	if filter.IsFavorited, err = queryFlag(c, "is_favorited"); err != nil {
		return err
	}
	if filter.IsInCart, err = queryFlag(c, "is_in_shopping_cart"); err != nil {
		return err
	}

	recipes, err := s.svc.Recipes.ListRecipes(c.Request().Context(), viewer(c), filter)
	if err != nil {
		return s.fail(c, err)
	}

	resp := PageResp[RecipeResp]{Count: recipes.Count, Results: make([]RecipeResp, len(recipes.Items))}
	for i := range recipes.Items {
		resp.Results[i] = newRecipeResp(recipes.Items[i], ProjectionFull)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) RecipeGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	recipe, err := s.svc.Recipes.GetRecipe(c.Request().Context(), viewer(c), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newRecipeResp(recipe, ProjectionFull))
}

func (s *HTTPServer) RecipeCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := RecipeReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	recipe, err := s.svc.Recipes.CreateRecipe(c.Request().Context(), *user, req.draft())
	s.countRecipeWrite("create", err)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, newRecipeResp(recipe, ProjectionFull))
}

func (s *HTTPServer) RecipeUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := RecipeReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	recipe, err := s.svc.Recipes.UpdateRecipe(c.Request().Context(), *user, id, req.draft())
	s.countRecipeWrite("update", err)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, newRecipeResp(recipe, ProjectionFull))
}

func (s *HTTPServer) RecipeDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	err = s.svc.Recipes.DeleteRecipe(c.Request().Context(), *user, id)
	s.countRecipeWrite("delete", err)
	if err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) membershipAdd(kind models.RelationKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := GetAndParseParam(c, "id")
		if err != nil {
			return err
		}
		user, err := GetUserFromContext(c)
		if err != nil {
			return err
		}

		recipe, err := s.svc.Memberships.Toggle(kind).Add(c.Request().Context(), *user, id)
		s.countToggle(kind, "add", err)
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusCreated, newRecipeSummaryResp(recipe))
	}
}

func (s *HTTPServer) membershipRemove(kind models.RelationKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := GetAndParseParam(c, "id")
		if err != nil {
			return err
		}
		user, err := GetUserFromContext(c)
		if err != nil {
			return err
		}

		err = s.svc.Memberships.Toggle(kind).Remove(c.Request().Context(), *user, id)
		s.countToggle(kind, "remove", err)
		if err != nil {
			return s.fail(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// DownloadShoppingCart streams the aggregated list. Headers go out with the
// first line, so a failure before it still gets a proper error response.
func (s *HTTPServer) DownloadShoppingCart(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	res := c.Response()
	started := false
	start := func() {
		res.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
		res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="shopping_list.txt"`)
		res.WriteHeader(http.StatusOK)
		started = true
	}

	lines := 0
	for line, err := range s.svc.Memberships.ShoppingListText(c.Request().Context(), *user) {
		if err != nil {
			if !started {
				return s.fail(c, err)
			}
			s.logger.Errorw("shopping list interrupted", "user_id", user.ID, "error", err)
			return nil
		}
		if !started {
			start()
		}
		if _, err := res.Write([]byte(line + "\n")); err != nil {
			return errors.Wrap(err, "write shopping list")
		}
		lines++
	}
	if !started {
		start()
	}
	if s.metrics != nil {
		s.metrics.ShoppingLines.Observe(float64(lines))
	}
	return nil
}

func (s *HTTPServer) RecipeShortLink(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	link, err := s.svc.ShortLinks.GetOrCreate(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"short-link": s.svc.ShortLinks.ShortURL(link.Code)})
}

func (s *HTTPServer) ShortLinkRedirect(c echo.Context) error {
	code, err := GetParam(c, "code")
	if err != nil {
		return err
	}
	fullURL, err := s.svc.ShortLinks.Resolve(c.Request().Context(), code)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Redirect(http.StatusFound, fullURL)
}

// AuthMiddleware resolves the x-token header into a user. Requests without
// a token pass through as anonymous; a token that matches nobody is
// rejected.
func (s *HTTPServer) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := strings.TrimSpace(c.Request().Header.Get(tokenHeader))
		if token == "" {
			return next(c)
		}

		user, err := s.svc.Accounts.Authenticate(c.Request().Context(), token)
		if err != nil {
			if !errors.Is(err, models.ErrUnauthorized) {
				s.logger.Errorw("find user by token", "error", err)
			}
			return c.NoContent(http.StatusUnauthorized)
		}

		c.Set(userKey, &user)
		return next(c)
	}
}

func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := c.Get(userKey).(*models.User); !ok {
			return c.NoContent(http.StatusUnauthorized)
		}
		return next(c)
	}
}

func (s *HTTPServer) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			s.logger.Infow("request", fields...)
			return nil
		},
	})
}

// fail maps domain errors onto HTTP responses. Anything unrecognized is a
// storage failure: logged and answered with 500.
func (s *HTTPServer) fail(c echo.Context, err error) error {
	var (
		compErr  *models.CompositionError
		validErr *models.ValidationError
	)
	switch {
	case errors.As(err, &compErr):
		return c.JSON(http.StatusBadRequest, map[string][]string{compErr.Field(): {compErr.Error()}})
	case errors.As(err, &validErr):
		return c.JSON(http.StatusBadRequest, map[string][]string{validErr.Field: {validErr.Message}})
	case errors.Is(err, models.ErrUnauthorized):
		return c.NoContent(http.StatusUnauthorized)
	case errors.Is(err, models.ErrForbidden):
		return c.JSON(http.StatusForbidden, detail(err))
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, detail(err))
	case errors.Is(err, models.ErrAlreadyExists):
		return c.JSON(http.StatusConflict, detail(err))
	default:
		s.logger.Errorw("request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "internal server error"})
	}
}

func detail(err error) map[string]string {
	return map[string]string{"detail": err.Error()}
}

func (s *HTTPServer) countToggle(kind models.RelationKind, op string, err error) {
	if s.metrics != nil {
		s.metrics.Toggles.WithLabelValues(kind.String(), op, metrics.Result(err)).Inc()
	}
}

func (s *HTTPServer) countRecipeWrite(op string, err error) {
	if s.metrics != nil {
		s.metrics.RecipesWritten.WithLabelValues(op, metrics.Result(err)).Inc()
	}
}

func (s *HTTPServer) pagination(c echo.Context) (int, int, error) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	limit, err := queryInt(c, "limit", s.pageSize)
	if err != nil {
		return 0, 0, err
	}
	if page < 1 || limit < 1 {
		return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "page and limit must be positive")
	}
	return page, min(limit, maxPageLimit), nil
}

func (r RecipeReq) draft() models.RecipeDraft {
	d := models.RecipeDraft{
		Name:        r.Name,
		Text:        r.Text,
		Image:       r.Image,
		CookingTime: r.CookingTime,
		Ingredients: make([]models.IngredientAmount, len(r.Ingredients)),
		TagIDs:      r.Tags,
	}
	for i, ing := range r.Ingredients {
		d.Ingredients[i] = models.IngredientAmount{IngredientID: ing.ID, Amount: ing.Amount}
	}
	return d
}

////////

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func BindAndValidate(c echo.Context, v interface{}) error {
	var err error
	if err = c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err = c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func GetUserFromContext(c echo.Context) (*models.User, error) {
	user, ok := c.Get(userKey).(*models.User)
	if !ok || user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "no user found in context")
	}
	return user, nil
}

func viewer(c echo.Context) models.Viewer {
	if user, ok := c.Get(userKey).(*models.User); ok && user != nil {
		return models.Viewer{UserID: user.ID}
	}
	return models.Viewer{}
}

func GetParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return value, nil
}

func GetAndParseParam(c echo.Context, name string) (uint64, error) {
	v, e := GetParam(c, name)
	if e != nil {
		return 0, e
	}
	vv, e := strconv.ParseUint(v, 10, 64)
	if e != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return vv, nil
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid query param '"+name+"'")
	}
	return n, nil
}

func queryFlag(c echo.Context, name string) (*bool, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid query param '"+name+"'")
	}
	return &b, nil
}
