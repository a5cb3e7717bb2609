package config // package config loads application configuration from environment variables

import (
    "fmt"
    "log"
    "os"
    "time"

    "github.com/iliyamo/resume-demo-gate/internal/access"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; durations use time.ParseDuration syntax.
type Config struct {
    Env              string // application environment (e.g. "dev", "prod")
    Port             string // HTTP port to listen on
    JWTSecret        string // secret for admin JWTs and turn token values
    AdminTokenTTLMin int    // lifetime of tokens minted by cmd/admintoken

    SessionDuration time.Duration // length of one demo session
    CodeWindow      time.Duration // validity of a verification code and the pass it yields
    CodeCooldown    time.Duration // minimum spacing between code requests per email
    CodeMaxAttempts int           // wrong guesses before a code is burnt
    BcryptCost      int           // bcrypt cost for code hashes
    TurnTokenTTL    time.Duration // how long a notified requester has to redeem the turn
    QueueStaleAfter time.Duration // queue entries older than this are dropped
    SweepInterval   time.Duration // background sweep period, 0 disables it

    NotifyTimeout   time.Duration // bound on one notification delivery
    NotifyBuffer    int           // pending notifications before new ones are dropped
    AMQPURL         string        // broker URL; empty sends notifications to the log
    NotifyQueue     string        // durable queue for notification events
    ConsumerEnabled bool          // run the audit consumer in-process
    NotifyLogDir    string        // directory of notifications.log
}

// Load reads configuration values from environment variables and returns a
// Config.  Missing or malformed values cause the program to exit with a
// fatal log message.
func Load() Config {
    cfg, err := load()
    if err != nil {
        log.Fatalf("config: %v", err)
    }
    return cfg
}

func load() (Config, error) {
    secret, err := required("JWT_SECRET")
    if err != nil {
        return Config{}, err
    }
    cfg := Config{
        Env:              envStr("APP_ENV", "dev"),
        Port:             envStr("APP_PORT", "8080"),
        JWTSecret:        secret,
        AdminTokenTTLMin: envInt("ADMIN_TOKEN_TTL_MIN", 60),
        SessionDuration:  envDur("SESSION_DURATION", 7*time.Minute),
        CodeWindow:       envDur("CODE_WINDOW", 10*time.Minute),
        CodeCooldown:     envDur("CODE_COOLDOWN", 2*time.Minute),
        CodeMaxAttempts:  envInt("CODE_MAX_ATTEMPTS", 5),
        BcryptCost:       envInt("BCRYPT_COST", 4),
        TurnTokenTTL:     envDur("TURN_TOKEN_TTL", 2*time.Minute),
        QueueStaleAfter:  envDur("QUEUE_STALE_AFTER", 30*time.Minute),
        SweepInterval:    envDur("SWEEP_INTERVAL", 5*time.Second),
        NotifyTimeout:    envDur("NOTIFY_TIMEOUT", 10*time.Second),
        NotifyBuffer:     envInt("NOTIFY_BUFFER", 256),
        AMQPURL:          amqpURL(),
        NotifyQueue:      envStr("NOTIFY_QUEUE", "demo.notifications"),
        ConsumerEnabled:  envBool("NOTIFY_CONSUMER_ENABLED", false),
        NotifyLogDir:     envStr("NOTIFY_LOG_DIR", "logs"),
    }
    for name, d := range map[string]time.Duration{
        "SESSION_DURATION": cfg.SessionDuration,
        "CODE_WINDOW":      cfg.CodeWindow,
        "TURN_TOKEN_TTL":   cfg.TurnTokenTTL,
        "NOTIFY_TIMEOUT":   cfg.NotifyTimeout,
    } {
        if d <= 0 {
            return Config{}, fmt.Errorf("%s must be positive, got %s", name, d)
        }
    }
    if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
        return Config{}, fmt.Errorf("BCRYPT_COST out of range: %d", cfg.BcryptCost)
    }
    return cfg, nil
}

// Access returns the arbitration settings.
func (c Config) Access() access.Config {
    return access.Config{
        SessionDuration: c.SessionDuration,
        QueueStaleAfter: c.QueueStaleAfter,
        TurnTokenTTL:    c.TurnTokenTTL,
        TokenSecret:     []byte(c.JWTSecret),
        Gate: access.GateConfig{
            Window:      c.CodeWindow,
            Cooldown:    c.CodeCooldown,
            MaxAttempts: c.CodeMaxAttempts,
            HashCost:    c.BcryptCost,
        },
    }
}

// amqpURL honours RABBITMQ_URL first and AMQP_URL second.  Unlike the
// broker defaults elsewhere, no URL means no broker.
func amqpURL() string {
    if v := os.Getenv("RABBITMQ_URL"); v != "" {
        return v
    }
    return os.Getenv("AMQP_URL")
}

// required retrieves the value of a required environment variable.
func required(key string) (string, error) {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        return "", fmt.Errorf("missing required env var: %s", key)
    }
    return v, nil
}
