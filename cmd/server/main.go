// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pizzabot-go/internal/config"
	"pizzabot-go/internal/handler"
	"pizzabot-go/internal/pipeline"
	"pizzabot-go/internal/repository"
	"pizzabot-go/internal/service"
	"pizzabot-go/pkg/database"
	"pizzabot-go/pkg/es"
	"pizzabot-go/pkg/kafka"
	"pizzabot-go/pkg/llm"
	"pizzabot-go/pkg/log"
	"pizzabot-go/pkg/pizzaapi"
	"pizzabot-go/pkg/storage"
	"pizzabot-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	prompts, err := config.LoadPrompts(cfg.LLM.PromptFile)
	if err != nil {
		log.Fatal("加载提示词失败", err)
	}
	if cfg.LLM.APIKey == "" {
		log.Warnf("未配置 OPENAI_API_KEY，LLM 调用将会失败")
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 3. 初始化 Redis、MySQL、MinIO 和 Elasticsearch，后三者未配置时跳过
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	database.InitMySQL(cfg.Database.MySQL.DSN)

	var receipts *storage.ReceiptStore
	if cfg.MinIO.Endpoint != "" {
		receipts, err = storage.InitMinIO(rootCtx, cfg.MinIO)
		if err != nil {
			log.Errorf("MinIO 初始化失败，订单回执不会保存: %v", err)
			receipts = nil
		}
	}

	var menuSearcher service.MenuSearcher
	if cfg.Elasticsearch.Addresses != "" {
		menuIndex, err := es.InitES(cfg.Elasticsearch)
		if err != nil {
			// 没有检索索引时退回本地匹配
			log.Errorf("es 初始化失败，菜单候选使用本地匹配: %v", err)
		} else {
			menuSearcher = menuIndex
		}
	}

	// 4. 初始化 Repository
	conversationRepo := repository.NewConversationRepository(database.RDB, cfg.Chat)
	var orderRepo repository.OrderRepository
	if database.DB != nil {
		orderRepo = repository.NewOrderRepository(database.DB)
	}

	// 5. 初始化订单归档管道 (Processor) 和事件发布者
	var receiptWriter pipeline.ReceiptWriter
	var receiptLinker service.ReceiptLinker
	if receipts != nil {
		receiptWriter = receipts
		receiptLinker = receipts
	}
	processor := pipeline.NewProcessor(receiptWriter, orderRepo)

	var publisher service.OrderPublisher
	if cfg.Kafka.Brokers != "" {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		publisher = producer
		// 启动后台 Kafka 消费者
		go kafka.StartConsumer(rootCtx, cfg.Kafka, processor, database.RDB)
	} else {
		log.Warnf("Kafka 未配置，订单将在请求中直接归档")
		publisher = pipeline.NewInlinePublisher(processor)
	}

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.SessionExpireHours, cfg.JWT.AdminExpireHours)
	llmClient := llm.NewClient(cfg.LLM)
	pizzaClient := pizzaapi.NewClient(cfg.PizzaAPI)
	menuService := service.NewMenuService(pizzaClient, menuSearcher, cfg.PizzaAPI.MenuTTL())
	orderFlow := service.NewOrderFlow(conversationRepo, menuService, pizzaClient, publisher, prompts)
	chatService := service.NewChatService(llmClient, conversationRepo, menuService, orderFlow, prompts, cfg.LLM.LLMTimeout())
	conversationService := service.NewConversationService(conversationRepo)
	adminService := service.NewAdminService(cfg.Admin, jwtManager, orderRepo, receiptLinker, conversationRepo)

	// 预热菜单缓存，失败不影响启动
	go func() {
		ctx, cancel := context.WithTimeout(rootCtx, cfg.PizzaAPI.Timeout()+5*time.Second)
		defer cancel()
		if _, err := menuService.GetMenu(ctx); err != nil {
			log.Warnf("预热菜单失败: %v", err)
		}
	}()

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.Services{
		Chat:         chatService,
		Conversation: conversationService,
		Menu:         menuService,
		Admin:        adminService,
		JWT:          jwtManager,
	}, cfg.Server.AllowedOrigins, cfg.JWT.SessionExpireHours*3600)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: handler.WithCORS(r, cfg.Server.AllowedOrigins),
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	// 停止 Kafka 消费者
	cancelRoot()

	log.Info("服务已优雅关闭")
}
