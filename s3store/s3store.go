package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/UltimateTournament/backoff/v4"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/danthegoodman1/tablestream/gologger"
	"github.com/danthegoodman1/tablestream/stream"
	"github.com/danthegoodman1/tablestream/table"
	"github.com/danthegoodman1/tablestream/utils"
	"github.com/rs/zerolog"
)

var (
	logger = gologger.NewLogger()
)

type (
	// Sink buffers each partition as NDJSON and uploads one object per writer
	// on Close. Uploads are retried with exponential backoff.
	Sink struct {
		bucket string
		prefix string
	}

	s3Writer struct {
		mu     sync.Mutex
		sink   *Sink
		key    string
		buf    bytes.Buffer
		ctx    context.Context
		closed bool
	}
)

func NewSink(bucket, prefix string) *Sink {
	return &Sink{bucket: bucket, prefix: prefix}
}

func (s *Sink) Writer(ctx context.Context, schema *table.Schema) (stream.Writer, error) {
	return &s3Writer{
		sink: s,
		key:  fmt.Sprintf("%s/%s.ndjson", s.prefix, utils.GenKSortedID("")),
		ctx:  ctx,
	}, nil
}

func (w *s3Writer) Write(ctx context.Context, row table.Row) error {
	b, err := json.Marshal(row.ToMap())
	if err != nil {
		return fmt.Errorf("error in json.Marshal of row: %w", err)
	}
	w.buf.Write(b)
	w.buf.WriteByte('\n')
	return nil
}

func (w *s3Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.buf.Len() == 0 {
		return nil
	}

	return backoff.Retry(func() error {
		_, err := writeBytesToS3(w.ctx, w.sink.bucket, w.key, bytes.NewReader(w.buf.Bytes()), nil)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), w.ctx))
}

func writeBytesToS3(ctx context.Context, bucket, fileName string, byteStream io.Reader, contentType *string) (*s3manager.UploadOutput, error) {

	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	s3Config := &aws.Config{
		Region:      aws.String(utils.AWS_DEFAULT_REGION),
		Credentials: credentials.NewEnvCredentials(),
	}
	if utils.S3_ENDPOINT != "" {
		s3Config.Endpoint = aws.String(utils.S3_ENDPOINT)
	}

	s3Session, err := session.NewSession(s3Config)
	if err != nil {
		return nil, fmt.Errorf("error making new session: %w", err)
	}

	uploader := s3manager.NewUploader(s3Session)

	input := &s3manager.UploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(fileName),
		Body:        byteStream,
		ContentType: contentType,
	}

	s := time.Now()
	output, err := uploader.UploadWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("error uploading to s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("fileName", fileName).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("uploaded file to s3")

	return output, nil
}
