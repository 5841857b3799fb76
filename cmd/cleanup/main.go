package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/inkfold/newsletter_go_server/config"
	"github.com/inkfold/newsletter_go_server/internal/database"
	"github.com/inkfold/newsletter_go_server/internal/repository"
)

var (
	dryRun       = flag.Bool("dry-run", true, "Dry run mode, don't actually delete anything")
	ledgerExpire = flag.Int("ledger-expire", 0, "Days to keep webhook events (0 = use config)")
	cleanLedger  = flag.Bool("clean-ledger", true, "Prune expired webhook ledger entries")
	cleanAILocks = flag.Bool("clean-ai-locks", true, "Remove AI locks left without a TTL")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	prunedEvents := int64(0)
	sweptLocks := 0

	// 1. 清理过期的 webhook 事件账本
	if *cleanLedger {
		retentionDays := *ledgerExpire
		if retentionDays <= 0 {
			retentionDays = cfg.Billing.LedgerRetentionDays
		}
		log.Printf("\n📒 Pruning webhook ledger (older than %d days)...", retentionDays)
		prunedEvents = pruneLedger(db, retentionDays, *dryRun)
	}

	// 2. 清理没有 TTL 的 AI 锁
	if *cleanAILocks {
		log.Println("\n🔒 Sweeping stale AI locks...")
		rdb, err := database.NewRedis(&cfg.Redis)
		if err != nil {
			log.Printf("Failed to connect redis, skipping lock sweep: %v", err)
		} else {
			sweptLocks = sweepStaleLocks(rdb, *dryRun)
		}
	}

	// 输出统计
	log.Println("\n" + strings.Repeat("=", 60))
	log.Println("📊 Cleanup Summary")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Pruned webhook events: %d", prunedEvents)
	log.Printf("Swept AI locks: %d", sweptLocks)
	if *dryRun {
		log.Println("\n⚠️  DRY RUN MODE - Nothing was actually deleted")
		log.Println("   Run with -dry-run=false to actually delete")
	} else {
		log.Println("\n✅ Cleanup completed!")
	}
	log.Println(strings.Repeat("=", 60))
}

// pruneLedger 删除超过保留期的 webhook 事件记录。
// 幂等窗口取决于保留期：Stripe 的重试最长数天，默认 90 天足够宽裕。
func pruneLedger(db *gorm.DB, retentionDays int, dryRun bool) int64 {
	webhookRepo := repository.NewWebhookRepository(db)
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	if dryRun {
		count, err := webhookRepo.CountOlderThan(cutoff)
		if err != nil {
			log.Printf("Failed to count expired events: %v", err)
			return 0
		}
		log.Printf("Found %d events older than cutoff %s", count, cutoff.Format(time.RFC3339))
		return count
	}

	deleted, err := webhookRepo.DeleteOlderThan(cutoff)
	if err != nil {
		log.Printf("Failed to prune ledger: %v", err)
		return 0
	}
	log.Printf("Deleted %d expired events", deleted)
	return deleted
}

// sweepStaleLocks 删除没有 TTL 的 ai 锁 key。
// SET NX PX 下正常不会出现，留作异常兜底。
func sweepStaleLocks(rdb *redis.Client, dryRun bool) int {
	ctx := context.Background()
	var cursor uint64
	swept := 0

	for {
		keys, next, err := rdb.Scan(ctx, cursor, "ai:lock:*", 100).Result()
		if err != nil {
			log.Printf("Failed to scan lock keys: %v", err)
			return swept
		}

		for _, key := range keys {
			ttl, err := rdb.TTL(ctx, key).Result()
			if err != nil {
				continue
			}
			// go-redis 对无过期时间的 key 返回 -1
			if ttl == -1 {
				log.Printf("  - %s (no TTL)", key)
				if !dryRun {
					if err := rdb.Del(ctx, key).Err(); err != nil {
						log.Printf("    ❌ Failed to delete: %v", err)
						continue
					}
				}
				swept++
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	log.Printf("Found %d locks without TTL", swept)
	return swept
}
