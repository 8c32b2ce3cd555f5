package model

import (
	"encoding/json"
	"strings"
)

// PushTargetKind はプッシュ通知先の形を表す。
type PushTargetKind string

const (
	// PushTargetNone は利用可能なプッシュチャネルがないことを示す。
	// 未登録・不正な形の購読値はどちらもこの種別になる。
	PushTargetNone PushTargetKind = "none"
	// PushTargetNative はExpoプッシュトークン（ネイティブアプリ）を示す。
	PushTargetNative PushTargetKind = "native"
	// PushTargetWeb はWeb Push購読（ブラウザ）を示す。
	PushTargetWeb PushTargetKind = "web"
)

// WebPushSubscription はブラウザのPush API購読オブジェクトを表す。
// ブラウザが生成したJSONをそのままデコードした形。
type WebPushSubscription struct {
	Endpoint string          `json:"endpoint"`
	Keys     WebPushKeys     `json:"keys"`
	Raw      json.RawMessage `json:"-"`
}

// WebPushKeys はWeb Push暗号化に使用する購読側の鍵ペア。
type WebPushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushTarget は単一スロットに格納された購読値を読み取り時に判別した結果。
// NativeToken と Web は Kind に応じてどちらか一方のみが有効になる。
type PushTarget struct {
	Kind        PushTargetKind
	NativeToken string
	Web         *WebPushSubscription
}

// expoTokenPrefixes はExpoプッシュトークンを識別する既知のプレフィックス。
var expoTokenPrefixes = []string{"ExponentPushToken[", "ExpoPushToken["}

// ParsePushTarget は永続化された購読値を構造で判別してタグ付きの形に変換する。
//
//   - Expoトークンのプレフィックスで始まる文字列 → PushTargetNative
//   - endpoint フィールドを持つJSONオブジェクト → PushTargetWeb
//   - それ以外（空文字列・不正JSON・endpointなし） → PushTargetNone
//
// 不正な値はエラーではなく「使えるチャネルがない」として扱う。
func ParsePushTarget(raw string) PushTarget {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PushTarget{Kind: PushTargetNone}
	}

	for _, prefix := range expoTokenPrefixes {
		if strings.HasPrefix(raw, prefix) && strings.HasSuffix(raw, "]") {
			return PushTarget{Kind: PushTargetNative, NativeToken: raw}
		}
	}

	if strings.HasPrefix(raw, "{") {
		var sub WebPushSubscription
		if err := json.Unmarshal([]byte(raw), &sub); err == nil && sub.Endpoint != "" {
			sub.Raw = json.RawMessage(raw)
			return PushTarget{Kind: PushTargetWeb, Web: &sub}
		}
	}

	return PushTarget{Kind: PushTargetNone}
}
