// Package commander is the administrative/debug plugin: status
// introspection, redirecting a message to another conversation, and sending
// or replacing a live table's backing workbook.
package commander

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rakunlabs/nezumi/internal/command"
	"github.com/rakunlabs/nezumi/internal/docstore"
	"github.com/rakunlabs/nezumi/internal/flow"
	"github.com/rakunlabs/nezumi/internal/plugin"
)

// Plugin implements .debug_s, .debug_to, .select_from, .backup and the
// on-file-uploaded hook that replaces a table's backing workbook.
type Plugin struct {
	*plugin.Base

	databases map[string]*docstore.Database
	startedAt time.Time
}

// New constructs the commander plugin. databases is keyed by module name
// (the same name used in "excel/<module>.xlsx"), so .select_from and an
// uploaded replacement file can be matched back to the live database.
func New(databases map[string]*docstore.Database) *Plugin {
	p := &Plugin{
		Base:      plugin.NewBase("commander"),
		databases: databases,
		startedAt: time.Now(),
	}

	p.RegisterCommand([]string{"debug", "_", "s"}, nil, p.handleDebugS)
	p.RegisterCommand([]string{"debug", "_", "to"},
		[]command.Param{
			{Name: "target", Kind: command.KindInt},
			{Name: "content", Kind: command.KindString},
		}, p.handleDebugTo)
	p.RegisterCommand([]string{"select", "_", "from"},
		[]command.Param{{Name: "db", Kind: command.KindString}}, p.handleSelectFrom)
	p.RegisterCommand([]string{"backup"}, nil, p.handleBackup)
	p.OnFileUploaded = p.handleFileUploaded

	plugin.Documented("commander", ".debug_s/.debug_to/.select_from/.backup - 管理与调试命令")

	return p
}

func (p *Plugin) handleDebugS(ctx context.Context, deps plugin.Deps, evt *plugin.Event, args map[string]any) (any, *flow.Computation, error) {
	senderName, _ := deps.Names.Context(ctx, evt.SenderID())
	contextName, _ := deps.Names.Context(ctx, evt.Context())

	lines := []string{
		"下面是调试信息。",
		fmt.Sprintf("消息发送者 ID = %d", evt.SenderID()),
		fmt.Sprintf("消息发送者 = %s", senderName),
		fmt.Sprintf("消息上下文 ID = %d", evt.Context()),
		fmt.Sprintf("消息上下文 = %s", contextName),
		"现在 = " + time.Now().Format("2006 年 1 月 2 日 15:04 MST"),
		"运行时间 = " + command.FormatTimespan(time.Since(p.startedAt)),
	}
	return strings.Join(lines, "\n"), nil, nil
}

func (p *Plugin) handleDebugTo(ctx context.Context, deps plugin.Deps, evt *plugin.Event, args map[string]any) (any, *flow.Computation, error) {
	target, _ := args["target"].(int64)
	content, _ := args["content"].(string)

	if deps.Gateway != nil {
		if err := deps.Gateway.Send(ctx, target, content); err != nil {
			return nil, nil, err
		}
	}

	name, _ := deps.Names.Context(ctx, target)
	return fmt.Sprintf("重定向 %s 到 [%s]。", content, name), nil, nil
}

func (p *Plugin) handleSelectFrom(ctx context.Context, deps plugin.Deps, evt *plugin.Event, args map[string]any) (any, *flow.Computation, error) {
	name, _ := args["db"].(string)

	db, ok := p.databases[name]
	if !ok {
		return fmt.Sprintf("没有名为 %s 的数据库。", name), nil, nil
	}

	if deps.Gateway == nil {
		return true, nil, nil
	}
	if err := deps.Gateway.SendFile(ctx, evt.Context(), db.Path(), filepath.Base(db.Path())); err != nil {
		return nil, nil, err
	}
	return true, nil, nil
}

// handleFileUploaded replaces a database's backing workbook with an
// uploaded file named "<module>.xlsx", renaming the previous file aside
// before reloading the live database from the new one.
func (p *Plugin) handleFileUploaded(ctx context.Context, deps plugin.Deps, convContext, sender int64, file plugin.File) (any, error) {
	name := strings.TrimSuffix(file.Name, ".xlsx")
	db, ok := p.databases[name]
	if !ok {
		return nil, nil
	}

	oldPath := fmt.Sprintf("%s.%s.xlsx", db.Path(), time.Now().Format("2006-01-02_15_04"))
	if err := os.Rename(db.Path(), oldPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("commander: rename %s: %w", db.Path(), err)
	}

	if err := downloadTo(ctx, file.URL, db.Path()); err != nil {
		return nil, err
	}

	if err := db.Reload(); err != nil {
		return nil, fmt.Errorf("commander: reload %s: %w", db.Path(), err)
	}

	return fmt.Sprintf("替换了 %s；原始文件被重命名为 %s。", db.Path(), oldPath), nil
}

// handleBackup archives the directory each database lives in into a
// gzip-compressed tarball and sends it back to the requesting conversation.
// The core doesn't clean up the temp file afterward; the wider deployment
// is responsible for that.
func (p *Plugin) handleBackup(ctx context.Context, deps plugin.Deps, evt *plugin.Event, args map[string]any) (any, *flow.Computation, error) {
	f, err := os.CreateTemp("", "nezumi-backup-*.tar.gz")
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	seen := map[string]bool{}
	for _, db := range p.databases {
		dir := filepath.Dir(db.Path())
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := addDirToTar(tw, dir); err != nil {
			return nil, nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, nil, err
	}

	if deps.Gateway != nil {
		if err := deps.Gateway.SendFile(ctx, evt.Context(), f.Name(), filepath.Base(f.Name())); err != nil {
			return nil, nil, err
		}
	}
	return true, nil, nil
}

func addDirToTar(tw *tar.Writer, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(filepath.Dir(dir), path)
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = rel

		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	})
}
