package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Configuration chứa thông tin tĩnh cần thiết để chạy ứng dụng
// Nó chứa thông tin cơ sở dữ liệu và các tham số của tầng phân phối sự kiện
type Configuration struct {
	Address               string `env:"ADDRESS" envDefault:":8080"`                // Địa chỉ server
	APIToken              string `env:"API_TOKEN,required"`                        // Bearer token cho control plane (xác thực chi tiết do hệ thống ngoài đảm nhiệm)
	MongoDB_ConnectionURI string `env:"MONGODB_CONNECTION_URI,required"`           // URL kết nối cơ sở dữ liệu
	MongoDB_DBName        string `env:"MONGODB_DBNAME,required"`                   // Tên cơ sở dữ liệu chính
	CORS_Origins          string `env:"CORS_ORIGINS" envDefault:"*"`               // Các origins được phép (phân cách bởi dấu phẩy, * = tất cả)
	CORS_AllowCredentials bool   `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"` // Cho phép gửi credentials
	RateLimit_Max         int    `env:"RATE_LIMIT_MAX" envDefault:"100"`           // Số request tối đa trong window (0 = disable rate limit)
	RateLimit_Window      int    `env:"RATE_LIMIT_WINDOW" envDefault:"60"`         // Thời gian window (giây)
	RateLimit_Enabled     bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`      // Bật/tắt rate limiting
	// Event Router Configuration
	RouterShards     int `env:"ROUTER_SHARDS" envDefault:"8"`        // Số shard xử lý sự kiện theo topic
	RouterShardQueue int `env:"ROUTER_SHARD_QUEUE" envDefault:"512"` // Kích thước hàng đợi mỗi shard
	// WebSocket / SSE Configuration
	WSSendBuffer    int `env:"WS_SEND_BUFFER" envDefault:"64"`     // Buffer kênh gửi cho mỗi connection
	WSWriteTimeout  int `env:"WS_WRITE_TIMEOUT" envDefault:"10"`   // Timeout ghi WebSocket (giây)
	WSPingInterval  int `env:"WS_PING_INTERVAL" envDefault:"30"`   // Chu kỳ ping WebSocket (giây)
	SSERetryMillis  int `env:"SSE_RETRY_MILLIS" envDefault:"3000"` // Giá trị retry gửi xuống SSE client (ms)
	// Message Queue Configuration
	QueueDefaultMaxSize int `env:"QUEUE_DEFAULT_MAX_SIZE" envDefault:"10000"` // Kích thước mặc định của message queue
	QueueDefaultTTL     int `env:"QUEUE_DEFAULT_TTL" envDefault:"3600"`       // TTL mặc định của queue entry (giây)
	// Dispatcher Configuration
	// Thông tin SMTP/Telegram/webhook nằm ở stream_integrations theo tenant,
	// không cấu hình qua env.
	DispatchTimeout   int `env:"DISPATCH_TIMEOUT" envDefault:"10"`   // Timeout gửi một channel (giây)
	DispatchBatchWait int `env:"DISPATCH_BATCH_WAIT" envDefault:"5"` // Chu kỳ gom batch notification không immediate (giây)
	// TLS/HTTPS Configuration
	EnableTLS   bool   `env:"ENABLE_TLS" envDefault:"false"` // Bật HTTPS
	TLSCertFile string `env:"TLS_CERT_FILE"`                 // Đường dẫn đến file certificate (.crt hoặc .pem)
	TLSKeyFile  string `env:"TLS_KEY_FILE"`                  // Đường dẫn đến file private key (.key)
}

// getEnvPath trả về đường dẫn đến file env dựa trên môi trường
func getEnvPath() string {
	// Mặc định sử dụng môi trường development
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Tìm thư mục config
	currentDir, err := os.Getwd()
	if err != nil {
		// Sử dụng fmt.Printf vì logger có thể chưa được init ở đây
		fmt.Printf("Không thể lấy được thư mục hiện tại: %v\n", err)
		return ""
	}

	// Tìm thư mục config/env
	for {
		envDir := filepath.Join(currentDir, "config", "env")
		if _, err := os.Stat(envDir); err == nil {
			// Tìm thấy thư mục config/env
			envPath := filepath.Join(envDir, fmt.Sprintf("%s.env", env))
			return envPath
		}

		// Đi lên thư mục cha
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return ""
		}
		currentDir = parentDir
	}
}

// NewConfig sẽ đọc dữ liệu cấu hình từ file env được cung cấp
func NewConfig(files ...string) *Configuration {
	envPath := getEnvPath()
	if envPath == "" {
		// Sử dụng fmt.Printf vì logger có thể chưa được init ở đây
		fmt.Printf("Không tìm thấy thư mục config/env\n")
		return nil
	}

	err := godotenv.Load(envPath)
	if err != nil {
		// Sử dụng fmt.Printf vì logger có thể chưa được init ở đây
		fmt.Printf("Không thể load file env tại %s: %v\n", envPath, err)
		return nil
	}

	cfg := Configuration{}
	err = env.Parse(&cfg)
	if err != nil {
		fmt.Printf("Lỗi khi parse config: %+v\n", err)
		return nil
	}

	return &cfg
}
