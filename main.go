package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/hellofresh/health-go/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/promptgate/gateway/admission"
	"github.com/promptgate/gateway/cache"
	"github.com/promptgate/gateway/gateway"
	"github.com/promptgate/gateway/secret"
	"github.com/promptgate/gateway/server"
)

type input struct {
	Config string `required:"true"`
	Server struct {
		Address         string        `default:":8080"`
		ReadTimeout     time.Duration `split_words:"true" default:"5s"`
		WriteTimeout    time.Duration `split_words:"true" default:"90s"`
		IdleTimeout     time.Duration `split_words:"true" default:"15s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
	Observability struct {
		Address string `default:":9090"`
	}
	Upstream struct {
		KeySource     string        `split_words:"true" default:"env"`
		KeyName       string        `split_words:"true" default:"UPSTREAM_API_KEY"`
		GoogleProject string        `split_words:"true"`
		HealthURL     string        `split_words:"true"`
		HealthTimeout time.Duration `split_words:"true" default:"5s"`
	}
	Cache struct {
		NumCounters int64 `split_words:"true" default:"100000"`
		MaxBytes    int64 `split_words:"true" default:"67108864"`
	}
}

var (
	app     = "prompt_gateway"
	version = "dev"
	// Metrics
	requestsRoutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prompt_gateway_requests_routed_total",
		Help: "The total number of routed requests",
	}, []string{"method", "path", "code"})
	requestsRoutedDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "prompt_gateway_requests_routed_duration_seconds",
		Help:    "The histogram of routed request duration in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)
}

func main() {
	var i input
	if err := envconfig.Process(app, &i); err != nil {
		log.Fatalf("failed to load input: %v\n", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	apiKey, err := loadAPIKey(ctx, &i)

	cancel()

	if err != nil {
		log.Fatalf("failed to load the upstream api key: %v\n", err)
	}

	responses, err := cache.NewInMemory(i.Cache.NumCounters, i.Cache.MaxBytes)
	if err != nil {
		log.Fatalf("failed to initialize the response cache: %v\n", err)
	}

	engine := admission.NewEngine(admission.DefaultConfig(), nil)

	g, err := gateway.New(strings.NewReader(i.Config), engine, apiKey, responses)
	if err != nil {
		log.Fatalf("failed to initialize the gateway: %v\n", err)
	}

	h := g.Handler()
	h = gateway.WithMetrics(requestsRoutedTotal, requestsRoutedDuration)(h)
	h = gateway.WithLogging()(h)
	h = gateway.WithRequestID()(h)

	serverConfig := server.Config{
		Address:         i.Server.Address,
		ReadTimeout:     i.Server.ReadTimeout,
		WriteTimeout:    i.Server.WriteTimeout,
		IdleTimeout:     i.Server.IdleTimeout,
		ShutdownTimeout: i.Server.ShutdownTimeout,
	}

	observabilityConfig := serverConfig
	observabilityConfig.Address = i.Observability.Address

	observability, err := server.NewObservability(observabilityConfig, app, version, upstreamChecks(&i)...)
	if err != nil {
		log.Fatalf("failed to initialize observability server: %v\n", err)
	}

	var (
		done = make(chan bool)
		quit = make(chan os.Signal, 1)
	)

	go func() {
		log.Println("starting observability server at", i.Observability.Address)

		if errs := observability.ListenAndServe(); errs != nil && errs != http.ErrServerClosed {
			log.Fatalf("failed to start observability server on %s: %v\n", i.Observability.Address, errs)
		}
	}()

	main := server.New(serverConfig, h)

	signal.Notify(quit, os.Interrupt)

	go func() {
		<-quit
		log.Println("server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), i.Server.ShutdownTimeout)
		defer cancel()

		main.SetKeepAlivesEnabled(false)
		observability.SetKeepAlivesEnabled(false)

		if err := main.Shutdown(ctx); err != nil {
			log.Fatalf("failed to gracefully shutdown the server: %v\n", err)
		}

		if err := observability.Shutdown(ctx); err != nil {
			log.Fatalf("failed to gracefully shutdown observability server: %v\n", err)
		}

		close(done)
	}()

	log.Println("server is ready to handle requests at", i.Server.Address)

	if err := main.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("failed to listen on %s: %v\n", i.Server.Address, err)
	}

	<-done
	log.Println("server stopped")
}

func loadAPIKey(ctx context.Context, i *input) (secret.Secret, error) {
	var source secret.Source

	switch i.Upstream.KeySource {
	case "env":
		source = secret.NewEnvSource()
	case "file":
		source = secret.NewFileSource()
	case "gsm":
		m, err := secret.NewGoogleSecretManager(ctx, i.Upstream.GoogleProject)
		if err != nil {
			return nil, err
		}

		defer m.Close()

		source = m
	default:
		return nil, fmt.Errorf("unknown secret source: %q", i.Upstream.KeySource)
	}

	return secret.NewBackoffSource(3, time.Second, source).Get(ctx, i.Upstream.KeyName)
}

func upstreamChecks(i *input) []health.Config {
	if i.Upstream.HealthURL == "" {
		return nil
	}

	var (
		u = i.Upstream.HealthURL
		t = i.Upstream.HealthTimeout
	)

	return []health.Config{{
		Name:      "upstream",
		Timeout:   t,
		SkipOnErr: false,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return err
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}

			_ = resp.Body.Close()

			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("upstream health returned %d", resp.StatusCode)
			}

			return nil
		},
	}}
}
