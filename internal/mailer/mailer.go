// Package mailer はメール送信機能を提供する。
// Resend APIによる送信と、リマインダー・予約確認・お問い合わせの
// 各HTMLテンプレートのレンダリングを含む。
// APIキー未設定の環境（開発・テスト）では送信内容をログ出力で代替する。
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/hitoshi/yoyaku/internal/model"
)

// Config はメール送信の設定を保持する。
type Config struct {
	APIKey    string // 空の場合は送信せずログ出力する
	From      string // 例: "Yoyaku <noreply@example.com>"
	ContactTo string // お問い合わせメールの宛先
	BaseURL   string // メール内リンクのベースURL。例: "https://yoyaku.example.com"
}

// Mailer はResend API経由でメールを送信する。
type Mailer struct {
	client *resend.Client // APIキー未設定の場合はnil
	config Config
	logger *slog.Logger
}

// New はMailerを生成する。
// APIキーが空の場合は送信をログ出力で代替するモードになる。
func New(config Config, logger *slog.Logger) *Mailer {
	var client *resend.Client
	if config.APIKey != "" {
		client = resend.NewClient(config.APIKey)
	}
	return &Mailer{
		client: client,
		config: config,
		logger: logger,
	}
}

// reminderData はリマインダーメールのテンプレートデータ。
// AppointmentsURLが空の場合、テンプレートはリンク部分を出力しない。
type reminderData struct {
	Name            string
	Title           string
	ScheduledAt     string
	Description     string
	AppointmentsURL string
}

var reminderTemplate = template.Must(template.New("reminder").Parse(`
<h1>{{.Name}}さん、こんにちは！</h1>
<p>まもなく開始する予約のリマインダーです。</p>
<h3>予約の詳細:</h3>
<ul>
  <li><strong>タイトル:</strong> {{.Title}}</li>
  <li><strong>日時:</strong> {{.ScheduledAt}}</li>
  <li><strong>説明:</strong> {{.Description}}</li>
</ul>
{{if .AppointmentsURL}}<p><a href="{{.AppointmentsURL}}">予約の一覧を確認する</a></p>
{{end}}<p>良い一日をお過ごしください！</p>
`))

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`
<h1>{{.Name}}さん、こんにちは！</h1>
<p>予約が登録されました。</p>
<h3>予約の詳細:</h3>
<ul>
  <li><strong>タイトル:</strong> {{.Title}}</li>
  <li><strong>日時:</strong> {{.ScheduledAt}}</li>
  <li><strong>説明:</strong> {{.Description}}</li>
</ul>
{{if .AppointmentsURL}}<p><a href="{{.AppointmentsURL}}">予約の一覧を確認する</a></p>
{{end}}<p>開始15分前にリマインダーをお送りします。</p>
`))

// contactData はお問い合わせメールのテンプレートデータ。
// Messageは呼び出し側でサニタイズ済みのHTMLを受け取る。
type contactData struct {
	Name    string
	Email   string
	Message template.HTML
}

var contactTemplate = template.Must(template.New("contact").Parse(`
<p>お問い合わせフォームから新しいメッセージが届きました。</p>
<h3>送信者:</h3>
<ul>
  <li><strong>名前:</strong> {{.Name}}</li>
  <li><strong>メール:</strong> {{.Email}}</li>
</ul>
<h3>メッセージ:</h3>
<p style="white-space: pre-wrap;">{{.Message}}</p>
`))

// SendReminder は予約リマインダーメールを送信する。
func (m *Mailer) SendReminder(ctx context.Context, owner model.ReminderOwner, appt model.Appointment) error {
	html, err := render(reminderTemplate, reminderData{
		Name:            owner.Name,
		Title:           appt.Title,
		ScheduledAt:     formatSchedule(appt.ScheduledAt),
		Description:     orDefault(appt.Description, "（説明なし）"),
		AppointmentsURL: m.appointmentsURL(),
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("🔔 予約のリマインダー: %s", appt.Title)
	return m.send(ctx, owner.Email, subject, html, "")
}

// SendConfirmation は予約確認メールを送信する。
func (m *Mailer) SendConfirmation(ctx context.Context, user *model.User, appt *model.Appointment) error {
	html, err := render(confirmationTemplate, reminderData{
		Name:            user.Name,
		Title:           appt.Title,
		ScheduledAt:     formatSchedule(appt.ScheduledAt),
		Description:     orDefault(appt.Description, "（説明なし）"),
		AppointmentsURL: m.appointmentsURL(),
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("✅ 予約を受け付けました: %s", appt.Title)
	return m.send(ctx, user.Email, subject, html, "")
}

// SendContact はお問い合わせメールを運用宛先に送信する。
// sanitizedMessageはbluemondayでサニタイズ済みのHTML断片を渡すこと。
func (m *Mailer) SendContact(ctx context.Context, name, email, sanitizedMessage string) error {
	html, err := render(contactTemplate, contactData{
		Name:    name,
		Email:   email,
		Message: template.HTML(sanitizedMessage),
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("新しいお問い合わせ: %s", name)
	return m.send(ctx, m.config.ContactTo, subject, html, email)
}

// send はResend APIでメールを1通送信する。
// クライアント未設定の場合は送信内容をログに出力して成功扱いにする。
func (m *Mailer) send(ctx context.Context, to, subject, html, replyTo string) error {
	if m.client == nil {
		m.logger.Info("メール送信をスキップしました（APIキー未設定）",
			slog.String("to", to),
			slog.String("subject", subject),
		)
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    m.config.From,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}
	if replyTo != "" {
		params.ReplyTo = replyTo
	}

	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	m.logger.Info("メールを送信しました",
		slog.String("to", to),
		slog.String("email_id", sent.Id),
	)
	return nil
}

// appointmentsURL は予約一覧ページのURLを返す。BaseURL未設定なら空文字。
func (m *Mailer) appointmentsURL() string {
	if m.config.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(m.config.BaseURL, "/") + "/appointments"
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}
	return buf.String(), nil
}

func formatSchedule(t time.Time) string {
	return t.Local().Format("2006年1月2日 15:04")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
