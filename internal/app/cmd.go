package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は読み取りAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandStats は統計サマリーを1回計算して標準出力に書き出すことを示す。
	CommandStats Command = "stats"
	// CommandLookup はIDまたはメールアドレスでユーザーを1件検索することを示す。
	CommandLookup Command = "lookup"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "stats":
		return CommandStats
	case "lookup":
		return CommandLookup
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// commandArgs はサブコマンド名を除いた残りの引数を返す。
func commandArgs(args []string) []string {
	if len(args) <= 1 {
		return nil
	}
	return args[1:]
}

// isOneShot は結果を標準出力に書き出して終了するコマンドかどうかを返す。
// これらのコマンドではログを標準エラー出力に分離する。
func (c Command) isOneShot() bool {
	return c == CommandStats || c == CommandLookup
}
