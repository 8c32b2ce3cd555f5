// Package notifier はリマインダーの各配信チャネルへの送信アダプタを提供する。
// Expoネイティブプッシュ、Web Push（VAPID）の各クライアントと、
// 送信結果の3値分類（成功/恒久的失敗/一時的失敗）を含む。
package notifier

// SendOutcome はチャネル送信結果の分類。
// ディスパッチャーはこの分類だけを見て購読の無効化を判断する。
type SendOutcome int

const (
	// OutcomeDelivered は配信成功。
	OutcomeDelivered SendOutcome = iota
	// OutcomeTransientFailure は一時的な配信失敗（ネットワークエラー、レート制限、5xx）。
	// 再試行すれば成功しうるが、リマインダーは1回試行のみで完結する。
	OutcomeTransientFailure
	// OutcomePermanentFailure は恒久的な配信失敗（デバイス/エンドポイントの登録抹消）。
	// 購読を無効化し、以後のサイクルで死んだ宛先を再試行しないようにする。
	OutcomePermanentFailure
)

// String はログ出力用の表現を返す。
func (o SendOutcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomePermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// ClassifyPushStatus はWeb PushエンドポイントのHTTPステータスコードを送信結果に分類する。
//
//	201/200     → 配信成功
//	404/410     → 購読抹消（恒久的失敗）
//	それ以外     → 一時的失敗（429/5xx/その他）
func ClassifyPushStatus(statusCode int) SendOutcome {
	switch {
	case statusCode == 200 || statusCode == 201:
		return OutcomeDelivered
	case statusCode == 404 || statusCode == 410:
		return OutcomePermanentFailure
	default:
		return OutcomeTransientFailure
	}
}
