package security

import "testing"

func TestProfileSanitizer_DisplayName(t *testing.T) {
	s := NewProfileSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"プレーンテキストはそのまま", "Taro Yamada", "Taro Yamada"},
		{"タグを除去", "<b>Taro</b>", "Taro"},
		{"属性付きタグも除去", `<a href="https://evil.example.com">Hanako</a>`, "Hanako"},
		{"アンパサンドは元の文字に戻す", "Tom & Jerry", "Tom & Jerry"},
		{"前後の空白を除去", "  Jiro  ", "Jiro"},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.DisplayName(tt.in); got != tt.want {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestProfileSanitizer_DisplayName_Idempotent(t *testing.T) {
	s := NewProfileSanitizer()
	once := s.DisplayName("<i>Saburo</i>")
	if twice := s.DisplayName(once); twice != once {
		t.Errorf("同一入力に対して同一出力になるべき: %q != %q", twice, once)
	}
}

func TestProfileSanitizer_AvatarURL(t *testing.T) {
	s := NewProfileSanitizer()

	tests := []struct {
		in   string
		want string
	}{
		{"https://cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{"http://cdn.example.com/a.png", "http://cdn.example.com/a.png"},
		{"javascript:alert(1)", ""},
		{"data:image/png;base64,AAAA", ""},
		{"/relative/path.png", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := s.AvatarURL(tt.in); got != tt.want {
			t.Errorf("AvatarURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
