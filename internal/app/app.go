package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hitoshi/userdir/internal/config"
	"github.com/hitoshi/userdir/internal/handler"
	"github.com/hitoshi/userdir/internal/logger"
	"github.com/hitoshi/userdir/internal/middleware"
	"github.com/hitoshi/userdir/internal/model"
	"github.com/joho/godotenv"
)

// ErrUserNotFound はlookupコマンドで対象ユーザーが見つからなかったことを表す。
var ErrUserNotFound = errors.New("user not found")

// oneShotTimeout は stats / lookup コマンド全体の制限時間。
const oneShotTimeout = 60 * time.Second

// Init はアプリケーションの初期化を行う。
// .envファイルがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .env の読み込み（既存の環境変数は上書きしない）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログの初期化
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	logger.SetupDefault(w, level)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。serveのログはstdoutに、stats / lookup のログはstderrに出力し、
// stats / lookup の結果はstdoutに書き出す。
func Run(stdout, stderr io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	logWriter := stdout
	if cmd.isOneShot() {
		logWriter = stderr
	}

	cfg, err := Init(logWriter)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	log := slog.Default()

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("backend", cfg.BackendKind),
	)

	c := buildComponents(cfg, log)
	defer func() {
		if err := c.close(); err != nil {
			log.Warn("failed to close backend", slog.String("error", err.Error()))
		}
	}()

	switch cmd {
	case CommandStats:
		return runStats(c, stdout, commandArgs(args))
	case CommandLookup:
		return runLookup(c, stdout, commandArgs(args))
	default:
		return runServe(cfg, c, log)
	}
}

// runServe は読み取りAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config, c *components, log *slog.Logger) error {
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitPerMin), log)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:      log,
		APIToken:    cfg.APIToken,
		RateLimiter: rateLimiter,
		Gatherer:    c.registry,
		Users:       c.service,
		MaxBatchIDs: cfg.BatchMaxIDs,
		Stats:       c.service,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	log.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// statsOutput は stats コマンドの出力形式。
type statsOutput struct {
	TargetDate      string         `json:"target_date"`
	DailyNewUsers   int            `json:"daily_new_users"`
	UserRetention7d int            `json:"user_retention_7d"`
	Retention       map[string]int `json:"retention"`
}

// runStats は統計サマリーと留存内訳を計算し、JSONで書き出す。
// 引数に YYYY-MM-DD を指定すると対象日を変更できる。
func runStats(c *components, w io.Writer, args []string) error {
	var date string
	if len(args) > 0 {
		date = args[0]
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
	defer cancel()

	summary := c.service.GetUserStatisticsSummary(ctx, date)
	breakdown := c.service.GetRetentionBreakdown(ctx, summary.TargetDate)

	out := statsOutput{
		TargetDate:      summary.TargetDate,
		DailyNewUsers:   summary.DailyNewUsers,
		UserRetention7d: summary.UserRetention7d,
		Retention:       make(map[string]int, len(breakdown)),
	}
	for days, n := range breakdown {
		out.Retention[fmt.Sprintf("%dd", days)] = n
	}

	return writeIndentedJSON(w, out)
}

// runLookup はIDまたはメールアドレスでユーザーを検索し、JSONで書き出す。
// 見つからない場合はErrUserNotFoundを返す。
func runLookup(c *components, w io.Writer, args []string) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return errors.New("lookup requires a user id or email")
	}
	key := strings.TrimSpace(args[0])

	ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
	defer cancel()

	var u *model.UserRecord
	if strings.Contains(key, "@") {
		u = c.service.GetUserByEmail(ctx, key)
	} else {
		u = c.service.GetUserByID(ctx, key)
	}
	if u == nil {
		return fmt.Errorf("%w: %s", ErrUserNotFound, key)
	}

	return writeIndentedJSON(w, u)
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
