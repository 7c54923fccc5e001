package app

import "fmt"

// Command はnotekeeperプロセスの起動モードを表す。
type Command string

const (
	// CommandServe はWebアプリケーションを起動する。期限切れセッションの掃除も同一プロセスで行う。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの掃除だけを行うワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はusers・notes・sessionsテーブルのマイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの /health を確認する。
	// distrolessイメージのDocker HEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

// Usage はサブコマンドの一覧。
const Usage = "usage: notekeeper [serve|worker|migrate|healthcheck]"

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。
// 未知のサブコマンドはタイプミスでサーバーが起動しないようエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	switch cmd := Command(args[0]); cmd {
	case CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck:
		return cmd, nil
	default:
		return "", fmt.Errorf("unknown command %q\n%s", args[0], Usage)
	}
}
