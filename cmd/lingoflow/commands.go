package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/z-wentao/lingoflow/pkg/app"
	"github.com/z-wentao/lingoflow/pkg/config"
	"github.com/z-wentao/lingoflow/pkg/language"
	"github.com/z-wentao/lingoflow/pkg/logger"
	"github.com/z-wentao/lingoflow/pkg/models"
)

// EnvPrefix 命令行参数对应的环境变量前缀，如 LINGOFLOW_MAIMEMO_TOKEN
const EnvPrefix = "LINGOFLOW"

const defaultTimeout = 5 * time.Minute

// cli 命令共享的状态，app 在 PersistentPreRunE 中按配置创建
type cli struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	app    *app.App
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out, errOut: errOut}
	c.v.SetEnvPrefix(EnvPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "lingoflow",
		Short: "多语言单词查询命令行",
		Long: `lingoflow 查询单词在英语、普通话、粤语、四川话中的释义、注音和例句，
并为每个例句合成音频。

Examples:
  lingoflow query hello -l en,zh,zh-sc
  lingoflow random --style computer
  lingoflow history --limit 5
  lingoflow notepads --maimemo-token xxx`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "config/config.yaml", "配置文件路径")
	pf.String("log-level", "", "日志级别，覆盖配置文件 (debug / info / warn / error)")
	pf.String("storage", "", "记录存储类型，覆盖配置文件 (file / memory / redis / postgres / hybrid)")

	root.AddCommand(
		c.queryCommand(),
		c.randomCommand(),
		c.historyCommand(),
		c.deleteCommand(),
		c.notepadsCommand(),
		c.syncCommand(),
	)
	return root
}

// setup 绑定当前命令的参数，加载配置并创建组件
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(c.v.GetString("config"))
	if err != nil {
		return err
	}
	if level := c.v.GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if storageType := c.v.GetString("storage"); storageType != "" {
		cfg.Storage.Type = storageType
	}

	c.app, err = app.New(cfg, logger.NewWithWriter(c.errOut, cfg.Log))
	return err
}

func queryFlags(fs *pflag.FlagSet) {
	fs.StringSliceP("languages", "l", []string{language.English, language.Mandarin}, "查询的语言代码")
	fs.IntP("examples", "n", 2, "例句数量")
	fs.Bool("json", false, "以 JSON 输出")
}

func (c *cli) queryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <word>",
		Short: "查询单词",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQuery(cmd.Context(), args[0])
		},
	}
	queryFlags(cmd.Flags())
	return cmd
}

func (c *cli) randomCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "random",
		Short: "按风格生成随机单词并查询",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			word, err := c.app.LLM.GenerateRandomWord(ctx, c.v.GetString("style"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "🎲 随机单词: %s\n", word)
			return c.runQuery(ctx, word)
		},
	}
	queryFlags(cmd.Flags())
	cmd.Flags().String("style", "", "单词风格 (work / life / computer / study)")
	return cmd
}

func (c *cli) runQuery(ctx context.Context, word string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := c.app.Dictionary.QueryWord(ctx, word, c.v.GetStringSlice("languages"), c.v.GetInt("examples"))
	if err != nil {
		return err
	}

	if c.v.GetBool("json") {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(result)
	}
	printResult(c.out, result)
	return nil
}

func printResult(w io.Writer, r *models.QueryResult) {
	fmt.Fprintf(w, "📖 %s  (%s)\n", r.Word, r.ID)
	for _, lang := range r.Languages {
		def := r.Results.Definitions[lang]
		fmt.Fprintf(w, "\n[%s] %s", lang, def.Definition)
		if def.Phonetic != "" {
			fmt.Fprintf(w, "  %s", def.Phonetic)
		}
		if def.PronounceWord != "" {
			fmt.Fprintf(w, "  (%s)", def.PronounceWord)
		}
		fmt.Fprintln(w)
		for _, e := range r.Results.Examples[lang] {
			fmt.Fprintf(w, "  - %s", e.Text)
			if e.AudioURL != "" {
				fmt.Fprintf(w, "  🔊 %s", e.AudioURL)
			}
			fmt.Fprintln(w)
		}
	}
}

func (c *cli) historyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "列出查询历史（最新的在前）",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			records, err := c.app.Records.List()
			if err != nil {
				return err
			}
			if limit := c.v.GetInt("limit"); limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			if len(records) == 0 {
				fmt.Fprintln(c.out, "📭 还没有查询记录")
				return nil
			}
			for _, r := range records {
				fmt.Fprintf(c.out, "%s  %-20s %s  %s\n",
					strconv.FormatFloat(r.UnixSeconds(), 'f', 6, 64),
					r.Word,
					strings.Join(r.Languages, ","),
					r.ID,
				)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "最多显示的条数，0 表示全部")
	return cmd
}

func (c *cli) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id | timestamp>",
		Short: "按 ID 或时间戳删除查询记录",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			key := args[0]
			if ts, err := strconv.ParseFloat(key, 64); err == nil {
				if err := c.app.Records.DeleteByTimestamp(ts); err != nil {
					return fmt.Errorf("删除时间戳 %s 的记录失败: %w", key, err)
				}
			} else if err := c.app.Records.Delete(key); err != nil {
				return fmt.Errorf("删除记录 %s 失败: %w", key, err)
			}
			fmt.Fprintf(c.out, "🗑  已删除 %s\n", key)
			return nil
		},
	}
}

func maimemoFlags(fs *pflag.FlagSet) {
	fs.String("maimemo-token", "", "墨墨 API Token（我的 > 更多设置 > 实验功能 > 开放API）")
}

func (c *cli) notepadsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notepads",
		Short: "列出墨墨云词本",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			notepads, err := c.app.Maimemo(c.v.GetString("maimemo-token")).ListNotepads(ctx)
			if err != nil {
				return err
			}
			if len(notepads) == 0 {
				fmt.Fprintln(c.out, "📭 您还没有创建任何云词本")
				return nil
			}

			fmt.Fprintf(c.out, "✅ 找到 %d 个云词本：\n\n", len(notepads))
			for i, notepad := range notepads {
				fmt.Fprintf(c.out, "📚 词本 %d\n", i+1)
				fmt.Fprintf(c.out, "   名称: %s\n", notepad.Title)
				fmt.Fprintf(c.out, "   ID:   %s\n", notepad.ID)
				if notepad.Brief != "" {
					fmt.Fprintf(c.out, "   简介: %s\n", notepad.Brief)
				}
				if len(notepad.Tags) > 0 {
					fmt.Fprintf(c.out, "   标签: %v\n", notepad.Tags)
				}
			}
			return nil
		},
	}
	maimemoFlags(cmd.Flags())
	return cmd
}

func (c *cli) syncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <record-id>",
		Short: "把查询记录中的单词追加到墨墨云词本",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := c.app.Records.Get(args[0])
			if err != nil {
				return fmt.Errorf("读取记录 %s 失败: %w", args[0], err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			notepadID := c.v.GetString("notepad")
			if notepadID == "" {
				return fmt.Errorf("请通过 --notepad 或 %s_NOTEPAD 指定云词本 ID", EnvPrefix)
			}
			client := c.app.Maimemo(c.v.GetString("maimemo-token"))
			if err := client.AppendWords(ctx, notepadID, []string{record.Word}); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "✅ 已把 %s 同步到云词本 %s\n", record.Word, notepadID)
			return nil
		},
	}
	maimemoFlags(cmd.Flags())
	cmd.Flags().String("notepad", "", "云词本 ID")
	return cmd
}
