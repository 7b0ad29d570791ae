package app

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/drstein77/storefront/internal/bdkeeper"
	"github.com/drstein77/storefront/internal/cart"
	"github.com/drstein77/storefront/internal/catalog"
	"github.com/drstein77/storefront/internal/config"
	"github.com/drstein77/storefront/internal/controllers"
	"github.com/drstein77/storefront/internal/logger"
	"github.com/drstein77/storefront/internal/middleware"
	"github.com/drstein77/storefront/internal/rdkeeper"
	"github.com/drstein77/storefront/internal/storage"
)

type Server struct {
	srv   *http.Server
	ctx   context.Context
	store *storage.KVStorage

	Log *logger.Logger
}

// NewServer creates a new Server instance with the provided context.
// Log starts as a no-op logger so early signals cannot hit a nil pointer.
func NewServer(ctx context.Context) *Server {
	server := new(Server)
	server.ctx = ctx
	server.Log = &logger.Logger{}
	return server
}

// Serve wires the storefront together and runs the HTTP server until the
// root context is cancelled: hydrate the cart from the persistent store,
// load and cache the catalog, then expose the binding routes.
func (server *Server) Serve() {
	// create and initialize a new option instance
	option := config.NewOptions()
	option.ParseFlags()

	// get a new logger
	nLogger, err := logger.NewLogger(option.LogLevel())
	if err != nil {
		log.Fatalln(err)
	}
	server.Log = nLogger

	// pick a durability keeper; nil degrades the store to memory-only
	keeper := newKeeper(option, nLogger)
	server.store = storage.NewKVStorage(server.ctx, keeper, nLogger)

	// hydrate the cart engine from the persisted state
	engine := cart.NewEngine(server.store, nLogger)
	engine.Hydrate(server.ctx)

	// fetch and cache the catalog; a failure leaves an empty catalog and the
	// cart fully functional
	loader := catalog.NewLoader(option.CatalogURL(), option.CatalogTimeout(), nLogger)
	server.loadCatalog(loader, option.CatalogURL())

	// create router and mount routes
	basecontr := controllers.NewBaseController(server.ctx, engine, loader, server.store, nLogger)
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(nLogger))
	r.Use(middleware.CompressResponseMiddleware)
	r.Mount("/", basecontr.Route())

	// configure and start the server
	server.srv = startServer(r, option.RunAddr())
	nLogger.Info("storefront is running", zap.String("addr", option.RunAddr()))

	// Block execution until the root context is cancelled
	<-server.ctx.Done()
}

// Shutdown gracefully stops the HTTP server and closes the store.
func (server *Server) Shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if server.srv != nil {
		if err := server.srv.Shutdown(ctx); err != nil {
			server.Log.Error("server shutdown failed", zap.Error(err))
		}
	}
	if server.store != nil {
		server.store.Close()
	}
	server.Log.Info("storefront stopped")
	server.Log.Sync()
}

func (server *Server) loadCatalog(loader *catalog.Loader, url string) {
	if url == "" {
		server.Log.Warn("catalog url is not configured, starting with an empty catalog")
		return
	}

	products, err := loader.Load(server.ctx)
	if err != nil {
		server.Log.Error("cannot load catalog, continuing with the cached snapshot", zap.Error(err))
		return
	}

	value, err := json.Marshal(products)
	if err != nil {
		server.Log.Error("cannot encode catalog", zap.Error(err))
		return
	}
	if err := server.store.Set(server.ctx, storage.KeyProducts, value); err != nil {
		server.Log.Warn("cannot cache catalog", zap.Error(err))
		return
	}
	server.Log.Info("catalog cached", zap.Int("products", len(products)))
}

// newKeeper selects the durability backend: Redis when configured, else
// Postgres, else none. Construction failures fall back to memory-only.
func newKeeper(option *config.Options, nLogger *logger.Logger) storage.Keeper {
	if option.RedisAddr() != "" {
		if kp := rdkeeper.NewRDKeeper(option.RedisAddr, nLogger); kp != nil {
			return kp
		}
		return nil
	}
	if option.DataBaseDSN() != "" {
		if kp := bdkeeper.NewBDKeeper(option.DataBaseDSN, nLogger); kp != nil {
			return kp
		}
	}
	return nil
}

func startServer(r *chi.Mux, addr string) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	return srv
}
