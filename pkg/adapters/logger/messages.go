package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Level prefixes
		"Warning:": "警告:",
		"Error:":   "エラー:",

		// Batch level messages (info)
		"Starting batch %s":                        "バッチ %s を開始します",
		"Found %d MP4 files":                       "%d 個のMP4ファイルが見つかりました",
		"Converting %s -> %s":                      "%s を %s に変換中",
		"Wrote %d frames to %s in %s":              "%d フレームを %s に書き込みました (%s)",
		"Batch completed: %d succeeded, %d failed": "バッチ完了: 成功 %d 件, 失敗 %d 件",
		"Interrupted, shutting down...":            "中断されました。シャットダウン中...",

		// Discover stage
		"Scanning %s":                             "%s を走査中",
		"Ignoring %s":                             "%s を無視します",
		"Discovered %d input files":               "%d 個の入力ファイルを検出しました",
		"Output %s is produced by both %s and %s": "出力 %s は %s と %s の両方から生成されます",

		// Convert stage
		"Opened %s: %s %dx%d, %.3f fps, %d frames": "%s を開きました: %s %dx%d, %.3f fps, %d フレーム",
		"Start time %d ns (%s)":                    "開始時刻 %d ns (%s)",
		"Counting frames in %s":                    "%s のフレーム数を計測中",
		"Skipped %d packets without payload":       "ペイロードのない %d パケットをスキップしました",

		// Warnings
		"Skipped %d packets without payload in %s": "%[2]s でペイロードのない %[1]d パケットをスキップしました",
		"Failed to write metrics: %v":              "メトリクスの書き込みに失敗しました: %v",

		// Errors
		"Failed to convert %s: %v":       "%s の変換に失敗しました: %v",
		"Failed to find input files: %v": "入力ファイルの検索に失敗しました: %v",
		"Failed to write output: %v":     "出力の書き込みに失敗しました: %v",
	})
}
