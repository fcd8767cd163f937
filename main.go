package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"satimage-server/config"
	"satimage-server/earthengine"
	"satimage-server/imageserver"
	"satimage-server/imagery"
	"satimage-server/metrics"
	"satimage-server/searchcache"
	"satimage-server/thumbserver"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	port = flag.Int("port", 0, "Serving port (overrides the configured addr)")
)

func topLevelContext() context.Context {
	ctx, cancelf := context.WithCancel(context.Background())
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigs
		log.Warnf("Caught signal %q, shutting down.", sig)
		cancelf()
	}()
	return ctx
}

func policyFromConfig(cfg *config.Config) (imagery.Policy, error) {
	start, end, err := cfg.Window()
	if err != nil {
		return imagery.Policy{}, err
	}
	return imagery.Policy{
		Primary:         imagery.Collection{ID: cfg.PrimaryCollection, CloudProperty: cfg.PrimaryCloudProperty},
		Fallback:        imagery.Collection{ID: cfg.FallbackCollection, CloudProperty: cfg.FallbackCloudProperty},
		Start:           start,
		End:             end,
		MaxCloudPercent: cfg.MaxCloudPercent,
		Scale:           cfg.Scale,
	}, nil
}

func newRouter(cfg *config.Config, client *earthengine.Client, m *metrics.Manager) (http.Handler, error) {
	policy, err := policyFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	svc := &imagery.Service{
		Selector: &imagery.Selector{
			Searcher: searchcache.New(client, cfg.CacheHistory),
			Policy:   policy,
			Observer: m,
		},
		Renderer: client,
	}
	is := imageserver.New(svc, cfg.DefaultBufferKM, cfg.RequestTimeout)
	if cfg.ThumbProxyBase != "" {
		is.PublicURL = thumbserver.ProxyURL(cfg.ThumbProxyBase)
	}
	images := m.Instrument("get_satellite_image", is)

	router := mux.NewRouter()
	router.Handle("/get_satellite_image/", images).Methods("POST")
	router.Handle("/get_satellite_image", images).Methods("POST")
	router.Handle("/api/thumb/{id:"+thumbserver.IDPattern+"}.png", m.Instrument("thumb", thumbserver.New(client))).Methods("GET")
	router.Handle("/metrics", m.Handler()).Methods("GET")

	// Every origin is allowed. Preflight headers are matched exactly, so the
	// ones browsers send are listed.
	headersOk := handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With", "Cache-Control", "Pragma"})
	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD", "PATCH"})
	return handlers.CORS(originsOk, headersOk, methodsOk)(router), nil
}

func main() {
	flag.Parse()
	ctx := topLevelContext()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration: %v", err)
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.Warnf("Unknown log level %q, keeping %v", cfg.LogLevel, log.GetLevel())
	}
	if *port != 0 {
		cfg.Addr = fmt.Sprintf(":%d", *port)
	}

	session, err := earthengine.NewSession(ctx, earthengine.CredentialSource{
		EnvVar:   cfg.CredentialsEnv,
		TempPath: cfg.CredentialsTempPath,
		File:     cfg.CredentialsFile,
	})
	if err != nil {
		log.Fatalf("Earth Engine authentication: %v", err)
	}
	log.Infof("Authenticated for project %q", session.Project)

	handler, err := newRouter(cfg, earthengine.New(session, cfg.APIBase), metrics.NewManager())
	if err != nil {
		log.Fatalf("Configuration: %v", err)
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handlers.CombinedLoggingHandler(log.StandardLogger().Writer(), handler),
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Starting on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("ListenAndServe(): %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	log.Infof("Shutdown")
}
