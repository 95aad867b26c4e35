// Package main provides localization for the mp4mcap CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Input and Output": "入出力",
		"Records":          "レコード",
		"Timing":           "タイミング",
		"Output Format":    "出力形式",
		"Execution":        "実行",
		"Reports":          "レポート",
		"Logging":          "ログ",

		// Root command
		"Convert H.264 video in MP4 files to MCAP logs":                                                                                                  "MP4ファイルのH.264動画をMCAPログに変換",
		"mp4mcap writes every compressed frame of the video track of each MP4 file as a timestamped foxglove.CompressedVideo message into an MCAP file.": "mp4mcapは各MP4ファイルの映像トラックの圧縮フレームを、タイムスタンプ付きのfoxglove.CompressedVideoメッセージとしてMCAPファイルに書き込みます。",

		// Convert command
		"Convert MP4 files to MCAP (default command)":                              "MP4ファイルをMCAPに変換（デフォルトコマンド）",
		"Convert every MP4 file found in the input paths into one MCAP file each.": "入力パスで見つかった各MP4ファイルをそれぞれ1つのMCAPファイルに変換します。",

		// Inspect command
		"Show the contents of an MCAP file":          "MCAPファイルの内容を表示",
		"Print one line per message":                 "メッセージごとに1行を出力",
		"Exactly one MCAP file argument is required": "MCAPファイルの引数を1つだけ指定してください",
		"File: %s":                                   "ファイル: %s",
		"Library: %s":                                "ライブラリ: %s",
		"Messages: %d":                               "メッセージ数: %d",
		"Start: %s (%d ns)":                          "開始: %s (%d ns)",
		"End: %s (%d ns)":                            "終了: %s (%d ns)",
		"Duration: %s":                               "長さ: %s",
		"Topics:":                                    "トピック:",
		"Metadata:":                                  "メタデータ:",

		// Version command
		"Show version information": "バージョン情報を表示",
		"mp4mcap version %s":       "mp4mcap バージョン %s",

		// Input and Output flags
		"MP4 file or directory to convert (repeatable, falls back to INPUT_PATHS)": "変換するMP4ファイルまたはディレクトリ（複数指定可、未指定時は INPUT_PATHS）",
		"Directory for MCAP files (falls back to OUTPUT_DIR)":                      "MCAPファイルの出力ディレクトリ（未指定時は OUTPUT_DIR）",
		"YAML configuration file":                                                  "YAML設定ファイル",

		// Records flags
		"Channel topic (falls back to TOPIC, default: /video/h264)":     "チャンネルのトピック（未指定時は TOPIC、デフォルト: /video/h264）",
		"Stream identifier written into every message (default: topic)": "各メッセージに書き込むストリーム識別子（デフォルト: トピック）",

		// Timing flags
		"Start time in nanoseconds since the Unix epoch for streams without timestamps": "タイムスタンプのないストリームの開始時刻（Unixエポックからのナノ秒）",
		"Frame rate used when a stream reports none (default: 30)":                      "ストリームにフレームレートがない場合の値（デフォルト: 30）",

		// Output Format flags
		"Frame payload framing (avcc, annexb)":     "フレームペイロードの形式（avcc, annexb）",
		"MCAP chunk compression (zstd, lz4, none)": "MCAPチャンクの圧縮方式（zstd, lz4, none）",
		"MCAP chunk size in bytes":                 "MCAPチャンクサイズ（バイト）",

		// Execution flags
		"Number of files converted in parallel":             "並列に変換するファイル数",
		"Keep converting after a file fails":                "ファイルの変換に失敗しても続行",
		"Count frames before converting for exact progress": "正確な進捗表示のため変換前にフレーム数を数える",
		"Disable progress bars":                             "進捗バーを無効化",

		// Reports flags
		"Write a batch summary to file (.json or Markdown)": "バッチのサマリーをファイルに出力（.json または Markdown）",
		"Write Prometheus metrics to file":                  "Prometheusメトリクスをファイルに出力",

		// Logging flags
		"Log level (debug, info, warn, error)": "ログレベル（debug, info, warn, error）",
		"Log format (console, text, json)":     "ログ形式（console, text, json）",
		"Suppress all log output":              "全てのログ出力を抑制",

		// Runtime messages
		"Loaded config from %s":       "設定を %s から読み込みました",
		"Summary saved to %s":         "サマリーを %s に保存しました",
		"Metrics saved to %s":         "メトリクスを %s に保存しました",
		"Failed to write summary: %v": "サマリーの書き込みに失敗しました: %v",

		// Summary content
		"Conversion Summary": "変換サマリー",
		"Run":                "実行ID",
		"Generated":          "生成日時",
		"Elapsed":            "所要時間",
		"Totals":             "集計",
		"Settings":           "設定",
		"Files":              "ファイル",
		"Errors":             "エラー",
		"Item":               "項目",
		"Value":              "値",

		// Totals section
		"Files Found":     "検出ファイル数",
		"Succeeded":       "成功",
		"Failed":          "失敗",
		"Frames":          "フレーム数",
		"Skipped Packets": "スキップしたパケット",
		"Payload":         "ペイロード",

		// Settings section
		"Topic":          "トピック",
		"Frame ID":       "フレームID",
		"Start Time":     "開始時刻",
		"from stream":    "ストリームから取得",
		"Default FPS":    "デフォルトFPS",
		"Payload Format": "ペイロード形式",
		"Compression":    "圧縮",
		"Jobs":           "並列数",
		"Failure Policy": "失敗時の動作",

		// Files section
		"Input":    "入力",
		"Output":   "出力",
		"Skipped":  "スキップ",
		"FPS":      "FPS",
		"Duration": "長さ",
		"Status":   "状態",
		"ok":       "成功",
		"failed":   "失敗",
	})
}
