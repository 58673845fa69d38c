package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/merchant-intake/internal/common"
	"github.com/joseph-ayodele/merchant-intake/internal/extract"
	"github.com/joseph-ayodele/merchant-intake/internal/pipeline"
)

const (
	ExtractionServiceName = "merchantintake.v1.ExtractionService"
	AnalyzeMethod         = "/" + ExtractionServiceName + "/Analyze"
)

// ExtractionServer analyzes one document without touching any session.
// Bodies are google.protobuf.Struct so no generated code is needed.
type ExtractionServer interface {
	Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ExtractionServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Analyze", Handler: analyzeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "merchantintake/v1/extraction.proto",
}

func analyzeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AnalyzeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).Analyze(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterExtractionServer registers srv and marks both the server and the
// service as serving on the standard health service.
func RegisterExtractionServer(s *grpc.Server, srv ExtractionServer) *health.Server {
	s.RegisterService(&ExtractionServiceDesc, srv)
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ExtractionServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return hs
}

// AnalyzeClient calls Analyze over conn.
func AnalyzeClient(ctx context.Context, conn grpc.ClientConnInterface, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, AnalyzeMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type ExtractionService struct {
	analyzer *pipeline.Analyzer
	logger   *slog.Logger
}

func NewExtractionService(analyzer *pipeline.Analyzer, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{analyzer: analyzer, logger: logger}
}

func (s *ExtractionService) Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	reqID := uuid.NewString()
	log := s.logger.With("req_id", reqID)
	ctx = common.WithLogger(common.WithRequestID(ctx, reqID), log)

	doc, current, err := documentFromStruct(req)
	if err != nil {
		log.Warn("grpc.analyze.invalid", "error", err)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	a := s.analyzer.Analyze(ctx, doc, current)
	out, err := analysisToStruct(a)
	if err != nil {
		log.Error("grpc.analyze.encode_failed", "error", err)
		return nil, status.Error(codes.Internal, "encode response")
	}
	log.Info("grpc.analyze.ok",
		"category", doc.Category,
		"outcome", a.Outcome,
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

func documentFromStruct(req *structpb.Struct) (extract.Document, map[string]string, error) {
	f := req.GetFields()
	str := func(name string) string { return strings.TrimSpace(f[name].GetStringValue()) }

	category, err := parseCategory(str("doc_category"))
	if err != nil {
		return extract.Document{}, nil, err
	}
	data, err := DecodeBase64(str("file_base64"))
	if err != nil {
		return extract.Document{}, nil, err
	}
	current := make(map[string]string)
	for k, v := range f["current"].GetStructValue().GetFields() {
		if sv := strings.TrimSpace(v.GetStringValue()); sv != "" {
			current[k] = sv
		}
	}
	doc := extract.Document{
		Bytes:    data,
		FileName: str("file_name"),
		MimeType: str("mime_type"),
		Category: category,
	}
	return doc, current, nil
}

func analysisToStruct(a pipeline.Analysis) (*structpb.Struct, error) {
	sources := make(map[string]any, len(a.Patch.Sources))
	for k, v := range a.Patch.Sources {
		sources[k] = string(v)
	}
	disagreements := make([]any, 0, len(a.Patch.Disagreements))
	for _, d := range a.Patch.Disagreements {
		disagreements = append(disagreements, map[string]any{
			"field":  d.Field,
			"remote": d.Remote,
			"local":  d.Local,
		})
	}
	m := map[string]any{
		"fields":        stringMap(a.Patch.Fields),
		"sources":       sources,
		"disagreements": disagreements,
		"outcome":       string(a.Outcome),
		"notice":        a.Notice,
		"remote": map[string]any{
			"fields": stringMap(extract.Values(a.Remote.Fields)),
			"error":  validUTF8(a.Remote.Error),
		},
		"local": map[string]any{
			"fields":   stringMap(extract.Values(a.Local.Fields)),
			"error":    validUTF8(a.Local.Error),
			"raw_text": validUTF8(a.Local.RawText),
		},
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("structpb: %w", err)
	}
	return out, nil
}

func stringMap(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[validUTF8(k)] = validUTF8(v)
	}
	return out
}

// validUTF8 keeps structpb from rejecting the whole response over one bad byte.
func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}
