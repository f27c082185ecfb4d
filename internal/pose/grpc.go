package pose

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"signprep/internal/services"
)

// Full method names of the remote pose service.
const (
	ConfigureMethod = "/signprep.pose.v1.PoseEstimator/Configure"
	DetectMethod    = "/signprep.pose.v1.PoseEstimator/Detect"
)

// GRPCDetector calls a remote pose estimation service.
type GRPCDetector struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// GRPCOption customizes DialGRPC.
type GRPCOption func(*grpcSettings)

type grpcSettings struct {
	timeout  time.Duration
	dialOpts []grpc.DialOption
}

// WithGRPCTimeout bounds each call; zero waits indefinitely.
func WithGRPCTimeout(timeout time.Duration) GRPCOption {
	return func(s *grpcSettings) {
		s.timeout = timeout
	}
}

// WithDialOptions appends client dial options (custom dialers, TLS).
func WithDialOptions(opts ...grpc.DialOption) GRPCOption {
	return func(s *grpcSettings) {
		s.dialOpts = append(s.dialOpts, opts...)
	}
}

// DialGRPC connects to target and configures the remote model with opts.
func DialGRPC(ctx context.Context, target string, opts Options, options ...GRPCOption) (*GRPCDetector, error) {
	settings := grpcSettings{}
	for _, opt := range options {
		opt(&settings)
	}
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, settings.dialOpts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, services.StageKeypoints, "dial pose service", target, err)
	}
	d := &GRPCDetector{conn: conn, timeout: settings.timeout}

	req, err := structpb.NewStruct(map[string]any{
		"static_image_mode":        opts.StaticImageMode,
		"model_complexity":         opts.ModelComplexity,
		"enable_segmentation":      opts.EnableSegmentation,
		"min_detection_confidence": opts.MinDetectionConfidence,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("encode pose options: %w", err)
	}
	var reply structpb.Struct
	if err := d.invoke(ctx, ConfigureMethod, req, &reply); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return d, nil
}

// Detect sends one frame to the remote service.
func (d *GRPCDetector) Detect(ctx context.Context, img image.Image) (*LandmarkSet, error) {
	pixels, width, height := RGB24(img)
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"width":  structpb.NewNumberValue(float64(width)),
		"height": structpb.NewNumberValue(float64(height)),
		"format": structpb.NewStringValue("rgb24"),
		"pixels": structpb.NewStringValue(base64.StdEncoding.EncodeToString(pixels)),
	}}
	var reply structpb.Struct
	if err := d.invoke(ctx, DetectMethod, req, &reply); err != nil {
		return nil, err
	}
	return decodeDetectReply(&reply)
}

func (d *GRPCDetector) invoke(ctx context.Context, method string, req, reply *structpb.Struct) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.conn.Invoke(ctx, method, req, reply); err != nil {
		marker := services.ErrExternalTool
		switch status.Code(err) {
		case codes.DeadlineExceeded:
			marker = services.ErrTimeout
		case codes.Canceled:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
		}
		return services.Wrap(marker, services.StageKeypoints, method, "pose service call failed", err)
	}
	return nil
}

func decodeDetectReply(reply *structpb.Struct) (*LandmarkSet, error) {
	fields := reply.GetFields()
	if !fields["detected"].GetBoolValue() {
		return nil, nil
	}
	list := fields["landmarks"].GetListValue()
	if list == nil {
		return nil, malformedReply("landmarks missing")
	}
	rows := make([][]float64, 0, len(list.GetValues()))
	for _, value := range list.GetValues() {
		inner := value.GetListValue()
		if inner == nil {
			return nil, malformedReply("landmark row is not a list")
		}
		row := make([]float64, 0, NumValues)
		for _, v := range inner.GetValues() {
			if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
				return nil, malformedReply("landmark value is not a number")
			}
			row = append(row, v.GetNumberValue())
		}
		rows = append(rows, row)
	}
	set, ok := landmarkSetFromRows(rows)
	if !ok {
		return nil, malformedReply(fmt.Sprintf("expected %dx%d landmarks, got %d rows", NumLandmarks, NumValues, len(rows)))
	}
	return &set, nil
}

func malformedReply(detail string) error {
	return services.Wrap(services.ErrExternalTool, services.StageKeypoints, DetectMethod, detail, ErrProtocol)
}

// Close releases the connection.
func (d *GRPCDetector) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	if err := d.conn.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
