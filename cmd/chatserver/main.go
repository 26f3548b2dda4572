package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/consilience/collab-chat/internal/assistant"
	"github.com/consilience/collab-chat/internal/broadcast"
	"github.com/consilience/collab-chat/internal/chat"
	"github.com/consilience/collab-chat/internal/engine"
	"github.com/consilience/collab-chat/internal/messaging"
	"github.com/consilience/collab-chat/internal/metrics"
	"github.com/consilience/collab-chat/internal/presence"
	"github.com/consilience/collab-chat/internal/protocol"
	"github.com/consilience/collab-chat/internal/ratelimit"
	"github.com/consilience/collab-chat/internal/session"
	"github.com/consilience/collab-chat/internal/ws"
)

func main() {
	config := ws.DefaultServerConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxConnections = n
		}
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}

	serverName, _ := os.Hostname()
	if v := os.Getenv("SERVER_NAME"); v != "" {
		serverName = v
	}
	if serverName == "" {
		serverName = "chat-1"
	}

	// --- NATS ---
	natsConfig := messaging.DefaultConfig()
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsConfig.URL = natsURL
	}
	natsConfig.Name = serverName

	natsClient, err := messaging.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Redis ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}

	sessionStore, err := session.NewStore(redisAddr, serverName)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	limiter := ratelimit.NewLimiter(sessionStore.Client())

	// --- Engine ---
	engCfg := engine.DefaultConfig()
	if v := os.Getenv("DEFAULT_CHANNEL"); v != "" {
		engCfg.DefaultChannel = v
	}
	if v := os.Getenv("AI_REPLY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			engCfg.Assistant.ReplyDelay = d
		}
	}

	eng := engine.New(engCfg, chat.NewStore(), presence.NewRegistry(), broadcast.NewDispatcher(), natsClient)

	// Fan remote messages from peer instances out to local clients.
	if err := natsClient.SubscribeChannels(eng.InjectRemote); err != nil {
		log.Fatalf("failed to subscribe to channel subjects: %v", err)
	}

	log.Printf("collab-chat server starting")
	log.Printf("  listen_addr:     %s", config.ListenAddr)
	log.Printf("  worker_pool:     %d", config.WorkerPoolSize)
	log.Printf("  max_connections: %d", config.MaxConnections)
	log.Printf("  read_timeout:    %s", config.ReadTimeout)
	log.Printf("  write_timeout:   %s", config.WriteTimeout)
	log.Printf("  nats_url:        %s", natsConfig.URL)
	log.Printf("  redis_addr:      %s", redisAddr)
	log.Printf("  server_name:     %s", serverName)
	log.Printf("  default_channel: %s", engCfg.DefaultChannel)

	dispatcher := ws.NewMessageDispatcher(nil)

	// -----------------------------------------------------------------------
	// join: bind a wallet identity and enter a channel
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeJoin, func(conn *ws.Connection, msg interface{}) {
		joinMsg, ok := msg.(protocol.JoinMsg)
		if !ok {
			return
		}

		res, err := eng.Join(conn, joinMsg.Identity, joinMsg.Channel)
		if err != nil {
			errResp, _ := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
				Code: "invalid_join", Message: err.Error(),
			})
			conn.Send(errResp)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := sessionStore.Bind(ctx, conn.ID(), joinMsg.Identity, res.Channel); err != nil {
			log.Printf("[join] redis bind failed conn=%s: %v", conn.ID(), err)
		}
		cancel()

		resp, err := protocol.NewServerMessage(protocol.TypeJoined, protocol.JoinedMsg{
			Channel: res.Channel,
			History: res.History,
			Matches: res.Matches,
		})
		if err != nil {
			log.Printf("[join] failed to build joined response: %v", err)
			return
		}
		if err := conn.Send(resp); err != nil {
			log.Printf("[join] failed to send joined response conn=%s: %v", conn.ID(), err)
		}
	})

	// -----------------------------------------------------------------------
	// message: store, fan out, and route assistant commands
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeMessage, func(conn *ws.Connection, msg interface{}) {
		chatMsg, ok := msg.(protocol.ChatMsg)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		rule := ratelimit.RuleMessage
		if assistant.IsCommand(chatMsg.Content) {
			rule = ratelimit.RuleAssistant
		}
		if allowed, _ := limiter.Allow(ctx, conn.ID(), rule); !allowed {
			resp, _ := protocol.NewServerMessage(protocol.TypeRateLimited, protocol.RateLimitedMsg{
				RetryAfter: int(rule.Window.Seconds()),
			})
			conn.Send(resp)
			return
		}

		if _, err := eng.HandleMessage(conn.ID(), chatMsg.Channel, chatMsg.Content); err != nil {
			errResp, _ := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
				Code: "invalid_message", Message: err.Error(),
			})
			conn.Send(errResp)
			return
		}

		if err := sessionStore.Touch(ctx, conn.ID()); err != nil {
			log.Printf("[message] redis touch failed conn=%s: %v", conn.ID(), err)
		}
	})

	// -----------------------------------------------------------------------
	// subscribe / unsubscribe: extra channel memberships
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSubscribe, func(conn *ws.Connection, msg interface{}) {
		subMsg, ok := msg.(protocol.SubscribeMsg)
		if !ok {
			return
		}
		if err := eng.Subscribe(conn.ID(), subMsg.Channel); err != nil {
			errResp, _ := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
				Code: "invalid_subscribe", Message: err.Error(),
			})
			conn.Send(errResp)
		}
	})

	dispatcher.Register(protocol.TypeUnsubscribe, func(conn *ws.Connection, msg interface{}) {
		unsubMsg, ok := msg.(protocol.UnsubscribeMsg)
		if !ok {
			return
		}
		eng.Unsubscribe(conn.ID(), unsubMsg.Channel)
	})

	server := ws.NewServer(config, sessionStore, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	server.SetOnDisconnect(eng.Disconnect)

	// --- HTTP query surface ---
	server.Handle("/metrics", metrics.Handler())

	server.Handle("/matches", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := r.URL.Query().Get("identity")
		if identity == "" {
			http.Error(w, `{"error":"identity query parameter required"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(eng.GetMatches(identity))
	}))

	server.Handle("/analytics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(eng.GetAnalytics())
	}))

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		natsClient.Close()
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if err := sessionStore.Close(); err != nil {
			log.Printf("session store close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
