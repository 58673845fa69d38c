package server

import (
	"context"
	"encoding/base64"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/extract"
	"github.com/joseph-ayodele/merchant-intake/internal/pipeline"
)

func dialBufconn(t *testing.T, analyzer *pipeline.Analyzer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterExtractionServer(s, NewExtractionService(analyzer, nil))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCAnalyze(t *testing.T) {
	remote := stubEngine{kind: extract.EngineRemote, res: extract.Result{Error: "backend unavailable"}}
	local := stubEngine{kind: extract.EngineLocal, res: extract.Result{
		RawText: "ACME LTD HE274180",
		Fields: map[string]extract.FieldValue{
			constants.FieldCompanyName:        extract.Scalar("ACME LTD"),
			constants.FieldRegistrationNumber: extract.Scalar("HE274180"),
		},
	}}
	conn := dialBufconn(t, pipeline.NewAnalyzer(remote, local, nil, nil))

	req, err := structpb.NewStruct(map[string]any{
		"file_base64":  base64.StdEncoding.EncodeToString([]byte("png")),
		"file_name":    "cert.png",
		"mime_type":    "image/png",
		"doc_category": string(constants.CertInc),
		"current":      map[string]any{constants.FieldCountry: "Cyprus"},
	})
	require.NoError(t, err)

	out, err := AnalyzeClient(context.Background(), conn, req)
	require.NoError(t, err)
	m := out.AsMap()

	fields := m["fields"].(map[string]any)
	assert.Equal(t, "ACME LTD", fields[constants.FieldCompanyName])
	assert.Equal(t, "Cyprus", fields[constants.FieldCountry])
	assert.Equal(t, "local", m["sources"].(map[string]any)[constants.FieldCompanyName])
	assert.Equal(t, constants.NoticePartialFailure, m["notice"])
	assert.Equal(t, string(constants.RunPartial), m["outcome"])
	assert.Equal(t, "backend unavailable", m["remote"].(map[string]any)["error"])
	assert.Equal(t, "ACME LTD HE274180", m["local"].(map[string]any)["raw_text"])
}

func TestAnalysisToStructRepairsInvalidUTF8(t *testing.T) {
	out, err := analysisToStruct(pipeline.Analysis{
		Outcome: constants.RunPartial,
		Local: extract.Result{
			RawText: "HE 274180 \xff\xfe",
			Error:   "tesseract: \xc3",
			Fields:  map[string]extract.FieldValue{constants.FieldRegistrationNumber: extract.Scalar("HE274180\xff")},
		},
	})
	require.NoError(t, err)
	local := out.AsMap()["local"].(map[string]any)
	assert.Equal(t, "HE 274180 \uFFFD", local["raw_text"])
	assert.Equal(t, "tesseract: \uFFFD", local["error"])
	assert.Equal(t, "HE274180\uFFFD", local["fields"].(map[string]any)[constants.FieldRegistrationNumber])
}

func TestGRPCAnalyzeInvalidArgument(t *testing.T) {
	conn := dialBufconn(t, pipeline.NewAnalyzer(nil, nil, nil, nil))

	req, err := structpb.NewStruct(map[string]any{"doc_category": "NOPE", "file_base64": "aGk="})
	require.NoError(t, err)
	_, err = AnalyzeClient(context.Background(), conn, req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCHealth(t *testing.T) {
	conn := dialBufconn(t, pipeline.NewAnalyzer(nil, nil, nil, nil))
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(),
		&grpc_health_v1.HealthCheckRequest{Service: ExtractionServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}
