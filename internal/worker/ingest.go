package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/inkfold/newsletter_go_server/internal/model/dto"
	"github.com/inkfold/newsletter_go_server/internal/pkg/queue"
	"github.com/inkfold/newsletter_go_server/internal/service"
)

// Processor 入库处理器，消费上游邮件接收层投递的消息
type Processor struct {
	contentService *service.ContentService
}

func NewProcessor(contentService *service.ContentService) *Processor {
	return &Processor{
		contentService: contentService,
	}
}

// Process 处理一条入库消息。
// 额度拒绝不算失败，消息正常消费掉；只有真实错误才返回给调用方。
func (p *Processor) Process(ctx context.Context, msg *queue.IngestMessage) error {
	source := msg.Source
	if source == "" {
		source = "inbound"
	}

	req := &dto.StoreNewsletterRequest{
		UserID:      msg.UserID,
		SenderEmail: msg.SenderEmail,
		SenderName:  msg.SenderName,
		Subject:     msg.Subject,
		HTML:        msg.HTML,
		ReceivedAt:  msg.ReceivedAt,
		IsPrivate:   msg.IsPrivate,
		Source:      source,
	}

	result, err := p.contentService.Store(ctx, req)
	if err != nil {
		return fmt.Errorf("store failed for user %d from %s: %w", msg.UserID, msg.SenderEmail, err)
	}

	if result.Skipped {
		log.Printf("Ingest: user %d item skipped (%s), sender %s", msg.UserID, result.Reason, msg.SenderEmail)
		return nil
	}

	log.Printf("Ingest: user %d item %d stored, locked=%t deduped=%t",
		msg.UserID, result.UserItemID, result.Locked, result.Deduped)
	return nil
}
