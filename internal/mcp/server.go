package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/leospirit/wecom-bulk-sender/internal/core"
	"github.com/leospirit/wecom-bulk-sender/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes the sender operations as MCP tools over stdio.
type MCPServer struct {
	state      *core.State
	selection  *core.Selection
	dispatcher *core.Dispatcher
	store      *store.Store
	logger     *slog.Logger
}

// NewMCPServer creates a new MCP server instance.
func NewMCPServer(state *core.State, selection *core.Selection, dispatcher *core.Dispatcher, store *store.Store, logger *slog.Logger) *MCPServer {
	return &MCPServer{
		state:      state,
		selection:  selection,
		dispatcher: dispatcher,
		store:      store,
		logger:     logger,
	}
}

// Run starts the MCP server using stdio transport.
func (s *MCPServer) Run() error {
	mcpServer := server.NewMCPServer(
		"wecomsender",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)

	s.logger.Info("MCP server starting on stdio")

	return server.ServeStdio(mcpServer)
}

// registerTools registers all available MCP tools.
func (s *MCPServer) registerTools(mcpServer *server.MCPServer) {
	// sender_status
	mcpServer.AddTool(mcp.NewTool("sender_status",
		mcp.WithDescription("查看发送任务的状态汇总（总数/待发送/排队/发送中/成功/失败/跳过）"),
	), s.handleStatus)

	// sender_list_tasks
	mcpServer.AddTool(mcp.NewTool("sender_list_tasks",
		mcp.WithDescription("列出当前任务及其发送状态"),
		mcp.WithString("status",
			mcp.Description("过滤状态: pending, queued, sending, sent, failed 或 skipped"),
			mcp.Enum("pending", "queued", "sending", "sent", "failed", "skipped"),
		),
	), s.handleListTasks)

	// sender_scan
	mcpServer.AddTool(mcp.NewTool("sender_scan",
		mcp.WithDescription("扫描根目录，发现新的待发送文件"),
		mcp.WithString("root_path",
			mcp.Description("要扫描的根目录（可选，默认使用当前配置）"),
		),
	), s.handleScan)

	// sender_send_batch
	mcpServer.AddTool(mcp.NewTool("sender_send_batch",
		mcp.WithDescription("批量发送所有待发送任务"),
	), s.handleSendBatch)

	// sender_send_selected
	mcpServer.AddTool(mcp.NewTool("sender_send_selected",
		mcp.WithDescription("发送勾选的任务。可传入任务 ID 列表补充勾选"),
		mcp.WithString("task_ids",
			mcp.Description("逗号分隔的任务 ID 列表（可选，默认发送当前勾选项）"),
		),
	), s.handleSendSelected)

	// sender_auto_watch
	mcpServer.AddTool(mcp.NewTool("sender_auto_watch",
		mcp.WithDescription("开启或关闭后端的自动目录监控"),
		mcp.WithBoolean("enabled",
			mcp.Required(),
			mcp.Description("true 开启，false 关闭"),
		),
	), s.handleAutoWatch)

	// sender_save_config
	mcpServer.AddTool(mcp.NewTool("sender_save_config",
		mcp.WithDescription("保存后端配置。只更新传入的字段，其余保持不变"),
		mcp.WithString("corp_id", mcp.Description("企业 ID")),
		mcp.WithString("agent_id", mcp.Description("应用 ID")),
		mcp.WithString("secret", mcp.Description("应用 Secret")),
		mcp.WithString("root_path", mcp.Description("扫描根目录")),
		mcp.WithNumber("rate_limit_per_sec", mcp.Description("每秒发送速率上限"), mcp.Min(0)),
		mcp.WithNumber("max_concurrency", mcp.Description("最大并发发送数"), mcp.Min(0)),
	), s.handleSaveConfig)

	// sender_check_ip
	mcpServer.AddTool(mcp.NewTool("sender_check_ip",
		mcp.WithDescription("检测后端的出口 IP（用于企业微信 IP 白名单）"),
	), s.handleCheckIP)

	// sender_recent_actions
	mcpServer.AddTool(mcp.NewTool("sender_recent_actions",
		mcp.WithDescription("查看最近的操作记录"),
		mcp.WithNumber("limit",
			mcp.Description("返回的记录数量，默认 20"),
			mcp.Min(1),
			mcp.Max(100),
		),
	), s.handleRecentActions)

	s.logger.Info("MCP tools registered", "count", 9)
}

// handleStatus handles the sender_status tool call.
func (s *MCPServer) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, ok := s.state.Snapshot()
	if !ok {
		return mcp.NewToolResultText("尚未从后端获取到状态"), nil
	}
	c := snap.Counts
	result := fmt.Sprintf("总数: %d\n待发送: %d\n排队: %d\n发送中: %d\n成功: %d\n失败: %d\n跳过: %d\n",
		c.Total, c.Pending, c.Queued, c.Sending, c.Sent, c.Failed, c.Skipped)
	result += fmt.Sprintf("勾选: %d\n快照时间: %s", s.selection.Count(), snap.FetchedAt.Format("2006-01-02 15:04:05"))
	return mcp.NewToolResultText(result), nil
}

// handleListTasks handles the sender_list_tasks tool call.
func (s *MCPServer) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, ok := s.state.Snapshot()
	if !ok {
		return mcp.NewToolResultText("尚未从后端获取到任务列表"), nil
	}

	statusFilter := mcp.ParseString(request, "status", "")
	var tasks []core.Task
	for _, t := range snap.Tasks {
		if statusFilter != "" && string(t.Status) != statusFilter {
			continue
		}
		tasks = append(tasks, t)
	}

	if len(tasks) == 0 {
		return mcp.NewToolResultText("没有找到任务"), nil
	}

	result := fmt.Sprintf("找到 %d 个任务:\n\n", len(tasks))
	for _, t := range tasks {
		marker := " "
		if s.selection.Has(t.ID) {
			marker = "✓"
		}
		result += fmt.Sprintf("[%s] #%d %s\n", marker, t.ID, truncateString(t.FilePath, 60))
		result += fmt.Sprintf("  学生: %s  家长: %s\n", t.StudentName, t.ParentName)
		result += fmt.Sprintf("  状态: %s", t.Status)
		if t.UserID == nil {
			result += "（未匹配联系人）"
		}
		result += "\n"
		if t.Error != nil && *t.Error != "" {
			result += fmt.Sprintf("  错误: %s\n", *t.Error)
		}
		result += "\n"
	}

	return mcp.NewToolResultText(result), nil
}

// handleScan handles the sender_scan tool call.
func (s *MCPServer) handleScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rootPath := mcp.ParseString(request, "root_path", "")
	if strings.TrimSpace(rootPath) == "" {
		rootPath = s.state.RootPath()
	}
	if err := s.dispatcher.Scan(ctx, rootPath); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("扫描失败: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("扫描完成: %s", rootPath)), nil
}

// handleSendBatch handles the sender_send_batch tool call.
func (s *MCPServer) handleSendBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.dispatcher.SendBatch(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("批量发送失败: %v", err)), nil
	}
	return mcp.NewToolResultText("批量发送已开始"), nil
}

// handleSendSelected handles the sender_send_selected tool call.
func (s *MCPServer) handleSendSelected(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idsParam := mcp.ParseString(request, "task_ids", "")
	if idsParam != "" {
		for _, part := range strings.Split(idsParam, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("无效的任务 ID: %s", part)), nil
			}
			if !s.selection.Has(id) {
				s.selection.Toggle(id)
			}
		}
	}
	count := s.selection.Count()
	if err := s.dispatcher.SendSelected(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("发送失败: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("已开始发送 %d 个勾选任务", count)), nil
}

// handleAutoWatch handles the sender_auto_watch tool call.
func (s *MCPServer) handleAutoWatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	enabled := mcp.ParseBoolean(request, "enabled", false)
	if s.state.AutoWatch() == enabled {
		return mcp.NewToolResultText(fmt.Sprintf("自动监控已处于目标状态: %t", enabled)), nil
	}
	if err := s.dispatcher.ToggleAutoWatch(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("切换自动监控失败: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("自动监控: %t", s.state.AutoWatch())), nil
}

// handleSaveConfig handles the sender_save_config tool call.
func (s *MCPServer) handleSaveConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var update core.ConfigUpdate
	if v := mcp.ParseString(request, "corp_id", ""); v != "" {
		update.CorpID = &v
	}
	if v := mcp.ParseString(request, "agent_id", ""); v != "" {
		update.AgentID = &v
	}
	if v := mcp.ParseString(request, "secret", ""); v != "" {
		update.Secret = &v
	}
	if v := mcp.ParseString(request, "root_path", ""); v != "" {
		update.RootPath = &v
	}
	if v := mcp.ParseFloat64(request, "rate_limit_per_sec", 0); v > 0 {
		update.RateLimitPerSec = &v
	}
	if v := mcp.ParseFloat64(request, "max_concurrency", 0); v > 0 {
		n := int(v)
		update.MaxConcurrency = &n
	}
	if update.Empty() {
		return mcp.NewToolResultError("没有要更新的字段"), nil
	}
	if err := s.dispatcher.SaveConfig(ctx, update); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("保存配置失败: %v", err)), nil
	}
	return mcp.NewToolResultText("配置已保存"), nil
}

// handleCheckIP handles the sender_check_ip tool call.
func (s *MCPServer) handleCheckIP(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.dispatcher.CheckEgressIP(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("检测出口 IP 失败: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("出口 IP: %s", s.state.EgressIP())), nil
}

// handleRecentActions handles the sender_recent_actions tool call.
func (s *MCPServer) handleRecentActions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(mcp.ParseFloat64(request, "limit", 20))
	recs, err := s.store.RecentActions(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("读取操作记录失败: %v", err)), nil
	}
	if len(recs) == 0 {
		return mcp.NewToolResultText("暂无操作记录"), nil
	}
	result := fmt.Sprintf("最近 %d 条操作:\n\n", len(recs))
	for _, rec := range recs {
		status := "✅"
		if !rec.OK {
			status = "❌"
		}
		result += fmt.Sprintf("%s %s %s\n", status, rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Action)
		if rec.Detail != "" {
			result += fmt.Sprintf("  %s\n", rec.Detail)
		}
		if rec.Message != "" {
			result += fmt.Sprintf("  %s\n", rec.Message)
		}
	}
	return mcp.NewToolResultText(result), nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
