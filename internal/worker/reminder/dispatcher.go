// Package reminder は予約リマインダーのバックグラウンド配信処理を提供する。
// スケジューラ、ディスパッチャ、配信結果の分類を含む。
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/yoyaku/internal/metrics"
	"github.com/hitoshi/yoyaku/internal/model"
	"github.com/hitoshi/yoyaku/internal/notifier"
	"github.com/hitoshi/yoyaku/internal/repository"
)

// NativePusher はExpoプッシュ通知の送信インターフェース。
type NativePusher interface {
	SendNativePush(ctx context.Context, token, title, body string, data map[string]string) (notifier.SendOutcome, error)
}

// WebPusher はWeb Push通知の送信インターフェース。
type WebPusher interface {
	SendWebPush(ctx context.Context, sub *model.WebPushSubscription, title, message string) (notifier.SendOutcome, error)
}

// ReminderMailer はリマインダーメールの送信インターフェース。
// mailer.Mailerの部分集合として定義する。
type ReminderMailer interface {
	SendReminder(ctx context.Context, owner model.ReminderOwner, appt model.Appointment) error
}

// EventBroadcaster は接続中クライアントへのイベント配信インターフェース。
// live.Hubの部分集合として定義する。
type EventBroadcaster interface {
	Broadcast(topic string, payload any)
}

// reminderEventTopic はUIリアルタイム通知のイベント名。
const reminderEventTopic = "appointment_reminder"

// Dispatcher はリマインダー候補の取得と多チャネル配信を行う。
// 候補は1件ずつ順に処理し、1件の失敗が他の候補に影響しないようにする。
type Dispatcher struct {
	apptRepo   repository.AppointmentRepository
	userRepo   repository.UserRepository
	nativePush NativePusher
	webPush    WebPusher
	mailer     ReminderMailer
	hub        EventBroadcaster
	collector  metrics.MetricsCollector
	logger     *slog.Logger
	window     time.Duration
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// windowが0以下の場合はデフォルト値15分を使用する。
func NewDispatcher(
	apptRepo repository.AppointmentRepository,
	userRepo repository.UserRepository,
	nativePush NativePusher,
	webPush WebPusher,
	mailer ReminderMailer,
	hub EventBroadcaster,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	window time.Duration,
) *Dispatcher {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Dispatcher{
		apptRepo:   apptRepo,
		userRepo:   userRepo,
		nativePush: nativePush,
		webPush:    webPush,
		mailer:     mailer,
		hub:        hub,
		collector:  collector,
		logger:     logger,
		window:     window,
	}
}

// RunOnce はリマインダー候補を1回取得し、順に配信する。
// 候補取得の失敗はこのサイクルのみを中止し、エラーを返す。
// 個別候補の配信失敗はログに記録して次の候補へ進む。
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	start := time.Now()

	candidates, err := d.apptRepo.ListDueForReminder(ctx, start, d.window)
	if err != nil {
		return fmt.Errorf("failed to list reminder candidates: %w", err)
	}

	if len(candidates) == 0 {
		d.logger.Info("通知対象の予約はありません")
		return nil
	}

	d.logger.Info("リマインダーサイクルを開始します",
		slog.Int("candidate_count", len(candidates)),
	)

	for _, candidate := range candidates {
		d.process(ctx, candidate)
	}

	duration := time.Since(start)
	d.collector.RecordDispatchLatency(duration)
	d.logger.Info("リマインダーサイクルが完了しました",
		slog.Int("candidate_count", len(candidates)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// process は1件の候補を多チャネルで配信し、通知済みに遷移させる。
// 全チャネルが失敗しても必ずreminder_sentをtrueにし、
// 同じ候補が次回以降のサイクルで再処理されないようにする。
func (d *Dispatcher) process(ctx context.Context, candidate *model.ReminderCandidate) {
	appt := candidate.Appointment
	owner := candidate.Owner

	pushSent := d.sendPush(ctx, owner, appt)
	emailSent := d.sendEmail(ctx, owner, appt)
	liveSent := d.broadcastEvent(appt)

	if err := d.apptRepo.MarkReminderSent(ctx, appt.ID); err != nil {
		// マークに失敗した候補は次回サイクルで再処理される（at-least-once）
		d.logger.Error("通知済みフラグの更新に失敗しました",
			slog.String("appointment_id", appt.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	d.collector.RecordReminderProcessed()
	d.logger.Info("リマインダーを処理しました",
		slog.String("appointment_id", appt.ID),
		slog.String("user_id", owner.ID),
		slog.Bool("push_sent", pushSent),
		slog.Bool("email_sent", emailSent),
		slog.Bool("live_sent", liveSent),
	)
}

// sendPush は購読値の形に応じてネイティブ/Webのどちらかでプッシュを送信する。
// 恒久的な失敗（トークン失効・購読の消滅）を検出した場合は購読値を破棄する。
func (d *Dispatcher) sendPush(ctx context.Context, owner model.ReminderOwner, appt model.Appointment) bool {
	target := model.ParsePushTarget(owner.PushSubscription)

	title := fmt.Sprintf("🔔 リマインダー: %s", appt.Title)
	body := fmt.Sprintf("予約は%sからです。", appt.ScheduledAt.Format("15:04"))

	var (
		outcome notifier.SendOutcome
		err     error
		channel string
	)

	switch target.Kind {
	case model.PushTargetNative:
		channel = "native_push"
		outcome, err = d.nativePush.SendNativePush(ctx, target.NativeToken, title, body, map[string]string{
			"appointment_id": appt.ID,
		})
	case model.PushTargetWeb:
		channel = "web_push"
		outcome, err = d.webPush.SendWebPush(ctx, target.Web, title, body)
	default:
		// 購読値が空または不正な形。プッシュはスキップする
		return false
	}

	d.collector.RecordChannelOutcome(channel, outcome.String())

	if err != nil {
		d.logger.Warn("プッシュ通知の送信に失敗しました",
			slog.String("appointment_id", appt.ID),
			slog.String("user_id", owner.ID),
			slog.String("channel", channel),
			slog.String("outcome", outcome.String()),
			slog.String("error", err.Error()),
		)
	}

	if outcome == notifier.OutcomePermanentFailure {
		if clearErr := d.userRepo.ClearPushSubscription(ctx, owner.ID); clearErr != nil {
			d.logger.Error("失効した購読値の破棄に失敗しました",
				slog.String("user_id", owner.ID),
				slog.String("error", clearErr.Error()),
			)
		} else {
			d.collector.RecordSubscriptionCleared()
			d.logger.Info("失効したプッシュ購読を破棄しました",
				slog.String("user_id", owner.ID),
				slog.String("channel", channel),
			)
		}
	}

	return outcome == notifier.OutcomeDelivered
}

// sendEmail はリマインダーメールをベストエフォートで送信する。
func (d *Dispatcher) sendEmail(ctx context.Context, owner model.ReminderOwner, appt model.Appointment) bool {
	if err := d.mailer.SendReminder(ctx, owner, appt); err != nil {
		d.collector.RecordChannelOutcome("email", notifier.OutcomeTransientFailure.String())
		d.logger.Warn("リマインダーメールの送信に失敗しました",
			slog.String("appointment_id", appt.ID),
			slog.String("user_id", owner.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	d.collector.RecordChannelOutcome("email", notifier.OutcomeDelivered.String())
	return true
}

// broadcastEvent は接続中クライアント全員にリマインダーイベントを配信する。
// 配信はfire-and-forgetで、受信者がいなくても成功扱いとする。
func (d *Dispatcher) broadcastEvent(appt model.Appointment) bool {
	d.hub.Broadcast(reminderEventTopic, map[string]string{
		"title":   fmt.Sprintf("リマインダー: %s", appt.Title),
		"message": "予約の時間が近づいています。",
	})
	d.collector.RecordChannelOutcome("live_event", notifier.OutcomeDelivered.String())
	return true
}
