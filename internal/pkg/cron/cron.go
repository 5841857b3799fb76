package cron

import (
	"log"
	"time"

	"github.com/inkfold/newsletter_go_server/internal/repository"
)

// Service 服务进程内的轻量定时任务。
// AI 日计数器靠 redis TTL 自然过期，这里只负责 webhook 账本的保留期清理。
type Service struct {
	webhookRepo   *repository.WebhookRepository
	retentionDays int
	stopChan      chan struct{}
}

func NewService(webhookRepo *repository.WebhookRepository, retentionDays int) *Service {
	return &Service{
		webhookRepo:   webhookRepo,
		retentionDays: retentionDays,
		stopChan:      make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runLedgerPrune()
	log.Println("Cron service started (webhook ledger prune)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runLedgerPrune 每周清理一次超过保留期的 webhook 事件记录
func (s *Service) runLedgerPrune() {
	ticker := time.NewTicker(7 * 24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.pruneLedger()
		}
	}
}

func (s *Service) pruneLedger() {
	retentionDays := s.retentionDays
	if retentionDays <= 0 {
		retentionDays = 90
	}

	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	deleted, err := s.webhookRepo.DeleteOlderThan(cutoff)
	if err != nil {
		log.Printf("Webhook ledger prune failed: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Webhook ledger prune: removed %d events older than %d days", deleted, retentionDays)
	}
}
