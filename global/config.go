package global

import (
	"context"
	"os"
	"strconv"

	mgoutil "SCProject/data/database/mgo/mongoutil"
	"SCProject/logger"
	"SCProject/service/mgo"
	"SCProject/service/natsx"
	redissrv "SCProject/service/storage/redis"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// AppConfig 进程配置。编译期默认值 + config.yaml + 环境变量，
// 后者覆盖前者。
type AppConfig struct {
	NodeID    string   `mapstructure:"node_id"`
	Port      int      `mapstructure:"port"`
	JwtSecret string   `mapstructure:"jwt_secret"`
	Users     []string `mapstructure:"users"` // 已知参与者名单（名册服务接入前的静态配置）

	OutboxPath string `mapstructure:"outbox_path"` // 客户端侧：发件箱文件

	Mongo struct {
		Uri      string `mapstructure:"uri"`
		Database string `mapstructure:"database"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	} `mapstructure:"mongo"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Nats struct {
		Servers []string `mapstructure:"servers"`
	} `mapstructure:"nats"`
}

var Global = AppConfig{
	NodeID:     "api_1",
	Port:       8080,
	OutboxPath: "outbox.json",
}

func init() {
	Global.Mongo.Uri = "mongodb://localhost:27017"
	Global.Mongo.Database = "santaChat"
	Global.Redis.Addr = "127.0.0.1:6379"
	Global.Nats.Servers = []string{"nats://127.0.0.1:4222"}
}

// Load 读 config.yaml（没有就全用默认），再吃环境变量。
func Load(path string) error {
	if path == "" {
		path = "config.yaml"
	}
	if b, err := os.ReadFile(path); err == nil {
		raw := map[string]any{}
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return err
		}
		if err := mapstructure.Decode(raw, &Global); err != nil {
			return err
		}
		logger.Infof("config loaded from %s", path)
	}

	if v := os.Getenv("SC_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			Global.Port = p
		}
	}
	if v := os.Getenv("SC_JWT_SECRET"); v != "" {
		Global.JwtSecret = v
	}
	if v := os.Getenv("SC_MONGO_URI"); v != "" {
		Global.Mongo.Uri = v
	}
	if v := os.Getenv("SC_REDIS_ADDR"); v != "" {
		Global.Redis.Addr = v
	}
	if v := os.Getenv("SC_NATS_URL"); v != "" {
		Global.Nats.Servers = []string{v}
	}
	return nil
}

func GetJwtSecret() []byte {
	if Global.JwtSecret == "" {
		// 开发默认，生产必须用 SC_JWT_SECRET 覆盖
		return []byte("mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o=")
	}
	return []byte(Global.JwtSecret)
}

func ConfigRedis() {
	err := redissrv.Init(redissrv.Config{
		Addr:     Global.Redis.Addr,
		Password: Global.Redis.Password,
		DB:       Global.Redis.DB,
	})
	if err != nil {
		// 没有 redis 只是丢掉副作用去重的兜底，不挡启动
		logger.Warnf("redis init failed: %v", err)
	}
}

func ConfigMgo(ctx context.Context) {
	mgo.StartAsync(ctx, &mgoutil.Config{
		Uri:      Global.Mongo.Uri,
		Database: Global.Mongo.Database,
		Username: Global.Mongo.Username,
		Password: Global.Mongo.Password,
	})
}

// ConfigNats 连 NATS 并返回注册表；连不上返回 nil（实时能力降级）。
func ConfigNats() *natsx.Registry {
	c, err := natsx.NewClient(natsx.Config{
		Servers: Global.Nats.Servers,
		Name:    "sc-" + Global.NodeID,
	})
	if err != nil {
		logger.Warnf("nats connect failed, realtime disabled: %v", err)
		return nil
	}
	return natsx.NewRegistry(c)
}
