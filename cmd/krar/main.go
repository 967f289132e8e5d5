package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/krar-project/krar/internal/cluster"
	"github.com/krar-project/krar/internal/config"
	"github.com/krar-project/krar/internal/metrics"
	"github.com/krar-project/krar/internal/notify"
	"github.com/krar-project/krar/internal/orchestrator"
	"github.com/krar-project/krar/internal/registry"
	"github.com/krar-project/krar/internal/tlsutil"
	"github.com/krar-project/krar/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		resources       []string
		labelDomain     string
		labelName       string
		labelValue      string
		namespacesAll   bool
		noNamespacesAll bool
		namespaces      []string
		explicit        []string
		dryRun          bool
		jobName         string
		mode            string
		smart           bool
		smartRestart    bool

		registryAuthfile string
		registryCreds    string
		dockerConfig     string
		maxConcurrent    int
		notifyWebhook    string
		registryTLSCert  string
		registryTLSKey   string
		registryTLSCA    string
		metricsAddr      string
	)

	cmd := &cobra.Command{
		Use:          "krar",
		Short:        "One-shot rollout restarter and mutable-tag drift detector for Kubernetes",
		Version:      version.Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if smart {
				mode = string(config.ModeSmart)
			}
			if cmd.Flags().Changed("namespaces") && !cmd.Flags().Changed("namespaces-all") {
				namespacesAll = false
			}
			if cmd.Flags().Changed("no-namespaces-all") {
				namespacesAll = !noNamespacesAll
			}
			if err := config.ValidateTLSFlags(registryTLSCert, registryTLSKey, registryTLSCA); err != nil {
				return err
			}

			labelValue = config.ResolveLabelValue(labelValue, jobName, os.Getenv("JOB_NAME"))

			cfg, err := config.Resolve(config.RunConfig{
				Mode:            config.Mode(mode),
				ResourceKinds:   resources,
				LabelDomain:     labelDomain,
				LabelName:       labelName,
				LabelValue:      labelValue,
				ExplicitTargets: explicit,
				NamespacesAll:   namespacesAll,
				Namespaces:      namespaces,
				DryRun:          dryRun,
				SmartRestart:    smartRestart,
				JobName:         jobName,
				Credentials: config.CredentialSpec{
					AuthfilePath:  registryAuthfile,
					InlineCreds:   registryCreds,
					ConfigDirPath: dockerConfig,
				},
				TLS: config.TLSSpec{
					CertFile: registryTLSCert,
					KeyFile:  registryTLSKey,
					CAFile:   registryTLSCA,
				},
				NotifyWebhook:        notifyWebhook,
				MaxConcurrentLookups: maxConcurrent,
				MetricsAddr:          metricsAddr,
			})
			if err != nil {
				return err
			}

			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&resources, "resources", "r", envList("KRAR_RESOURCES"), "comma-separated controller kinds for label discovery")
	flags.StringVarP(&labelDomain, "label-domain", "d", os.Getenv("KRAR_LABEL_DOMAIN"), "label prefix")
	flags.StringVarP(&labelName, "label-name", "n", os.Getenv("KRAR_LABEL_NAME"), "label key")
	flags.StringVarP(&labelValue, "label-value", "v", os.Getenv("KRAR_LABEL_VALUE"), "label value (falls back to job-name, then ambient job name)")
	flags.BoolVarP(&namespacesAll, "namespaces-all", "A", envBool("KRAR_NAMESPACES_ALL", true), "discover across all namespaces")
	flags.BoolVar(&noNamespacesAll, "no-namespaces-all", false, "scope discovery to --namespaces instead of all namespaces (overrides --namespaces-all)")
	flags.StringSliceVarP(&namespaces, "namespaces", "N", envList("KRAR_NAMESPACES"), "comma-separated namespaces (implies scoped discovery)")
	flags.StringSliceVar(&explicit, "targets", envList("KRAR_TARGETS"), "comma-separated explicit \"namespace/Kind/name\" targets")
	flags.BoolVar(&dryRun, "dry-run", envBool("KRAR_DRY_RUN", false), "report actions without mutating the cluster")
	flags.StringVarP(&jobName, "job-name", "j", os.Getenv("KRAR_JOB_NAME"), "logical job name")
	flags.StringVar(&mode, "mode", envDefault("KRAR_MODE", string(config.ModeRollout)), "rollout or smart")
	flags.BoolVar(&smart, "smart", false, "shorthand for --mode smart")
	flags.BoolVar(&smartRestart, "smart-restart", envBool("KRAR_SMART_RESTART", false), "enable automatic restart in smart mode")

	flags.StringVar(&registryAuthfile, "registry-authfile", os.Getenv("KRAR_REGISTRY_AUTHFILE"), "path to a dockerconfigjson-shaped authfile")
	flags.StringVar(&registryCreds, "registry-creds", os.Getenv("KRAR_REGISTRY_CREDS"), "inline \"user:pass\" registry credentials")
	flags.StringVar(&dockerConfig, "docker-config", envDefault("KRAR_DOCKER_CONFIG", os.Getenv("HOME")+"/.docker"), "docker config directory containing config.json")
	flags.IntVar(&maxConcurrent, "max-concurrent-lookups", envInt("KRAR_MAX_CONCURRENT_LOOKUPS", config.DefaultMaxConcurrentLookups), "max parallel registry digest lookups")
	flags.StringVar(&notifyWebhook, "notify-webhook", os.Getenv("KRAR_NOTIFY_WEBHOOK"), "optional webhook URL for drift/rollout notifications")
	flags.StringVar(&registryTLSCert, "registry-tls-cert", os.Getenv("KRAR_REGISTRY_TLS_CERT"), "client certificate for registry/webhook mTLS")
	flags.StringVar(&registryTLSKey, "registry-tls-key", os.Getenv("KRAR_REGISTRY_TLS_KEY"), "client key for registry/webhook mTLS")
	flags.StringVar(&registryTLSCA, "registry-tls-ca", os.Getenv("KRAR_REGISTRY_TLS_CA"), "CA bundle for registry/webhook mTLS")
	flags.StringVar(&metricsAddr, "metrics-addr", os.Getenv("KRAR_METRICS_ADDR"), "bind address for the Prometheus metrics endpoint (empty disables it)")

	return cmd
}

// envDefault reads key and falls back to def if unset. It is used to build
// flag defaults so cobra's own flag-over-default precedence gives CLI flags
// priority over environment variables for free.
func envDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envList(key string) []string {
	return config.SplitTrim(os.Getenv(key))
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return v == "1" || v == "true" || v == "TRUE"
}

// envInt reads key as an integer and falls back to def if unset or
// unparseable.
func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func run(cfg config.RunConfig) error {
	ctrl.SetLogger(zap.New())
	logger := ctrl.Log.WithName("krar").WithValues("runID", uuid.New().String())

	kubeCfg, err := ctrl.GetConfig()
	if err != nil {
		return fmt.Errorf("loading kubeconfig: %w", err)
	}
	clusterClient, err := cluster.NewRealClient(kubeCfg)
	if err != nil {
		return fmt.Errorf("building cluster client: %w", err)
	}

	registryTransport := http.DefaultTransport
	if config.TLSEnabled(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile) {
		tlsCfg, err := tlsutil.ClientConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
		if err != nil {
			return fmt.Errorf("loading registry TLS material: %w", err)
		}
		registryTransport = tlsutil.Transport(tlsCfg)
	}
	registryClient := &registry.RemoteClient{Transport: registryTransport}
	auth := registry.SelectAuth(cfg.Credentials)

	reg := prometheus.NewRegistry()
	m := metrics.NewCounters(reg)
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer stop()
	}

	var notifier *notify.Notifier
	if cfg.NotifyWebhook != "" {
		notifier = notify.NewNotifier(cfg.NotifyWebhook, nil)
		if registryTransport != http.DefaultTransport {
			notifier.HTTPClient.Transport = registryTransport
		}
	}

	orch := &orchestrator.Orchestrator{
		Cluster:  clusterClient,
		Registry: registryClient,
		Auth:     auth,
		Notifier: notifier,
		Metrics:  m,
	}

	report, err := orch.Run(context.Background(), cfg, logger)
	if err != nil {
		logger.Error(err, "run failed")
		return err
	}

	logger.Info("run complete",
		"message", report.Message,
		"targets", report.TargetCount,
		"restarted", len(report.RestartedRefs),
		"dry-run-candidates", len(report.DryRunRefs),
		"drifted-images", len(report.DriftedImages),
	)
	for _, ref := range report.DryRunRefs {
		fmt.Printf("would restart %s\n", ref.String())
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger logr.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "metrics server exited unexpectedly")
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() { _ = srv.Close() }
}
