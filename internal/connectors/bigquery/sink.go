package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"

	"suppliers/internal"
	"suppliers/internal/config"
	"suppliers/internal/connectors/gauth"
	"suppliers/internal/util"
)

// Sink loads rows into one BigQuery table with a load job that truncates the
// table and creates it when missing. A failed job leaves the table as it was.
type Sink struct {
	service *bq.Service
	project string
	dataset string
	table   string
	pacer   *util.Pacer
	timeout time.Duration
}

func NewSink(ctx context.Context, cfg config.Config) (*Sink, error) {
	if err := cfg.Require("GCP_PROJECT", cfg.GCPProject); err != nil {
		return nil, err
	}
	opts, err := gauth.ClientOptions(ctx, cfg, bq.BigqueryScope)
	if err != nil {
		return nil, err
	}
	return NewSinkWithOptions(ctx, cfg, opts...)
}

func NewSinkWithOptions(ctx context.Context, cfg config.Config, opts ...option.ClientOption) (*Sink, error) {
	svc, err := bq.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Sink{
		service: svc,
		project: cfg.GCPProject,
		dataset: cfg.BigQueryDataset,
		table:   cfg.BigQueryTable,
		pacer:   util.NewPacer(cfg.BigQueryPollRPS),
		timeout: time.Duration(cfg.BigQueryTimeout) * time.Millisecond,
	}, nil
}

func (s *Sink) ReplaceRows(ctx context.Context, rows []internal.TabularRow) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	payload, err := EncodeRows(rows)
	if err != nil {
		return err
	}

	job := &bq.Job{
		Configuration: &bq.JobConfiguration{
			Load: &bq.JobConfigurationLoad{
				DestinationTable: &bq.TableReference{
					ProjectId: s.project,
					DatasetId: s.dataset,
					TableId:   s.table,
				},
				Schema:            TableSchema(),
				SourceFormat:      "NEWLINE_DELIMITED_JSON",
				WriteDisposition:  "WRITE_TRUNCATE",
				CreateDisposition: "CREATE_IF_NEEDED",
			},
		},
	}

	inserted, err := s.service.Jobs.Insert(s.project, job).Media(bytes.NewReader(payload)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert load job: %w", err)
	}
	if inserted.JobReference == nil {
		return fmt.Errorf("insert load job: no job reference returned")
	}
	return s.wait(ctx, inserted)
}

func (s *Sink) wait(ctx context.Context, job *bq.Job) error {
	ref := job.JobReference
	for {
		if done, err := jobDone(ref.JobId, job); done {
			return err
		}
		if err := s.pacer.Wait(ctx); err != nil {
			return fmt.Errorf("wait for load job %s: %w", ref.JobId, err)
		}
		call := s.service.Jobs.Get(s.project, ref.JobId).Context(ctx)
		if ref.Location != "" {
			call = call.Location(ref.Location)
		}
		next, err := call.Do()
		if err != nil {
			return fmt.Errorf("get load job %s: %w", ref.JobId, err)
		}
		job = next
	}
}

func jobDone(jobID string, job *bq.Job) (bool, error) {
	if job.Status == nil || job.Status.State != "DONE" {
		return false, nil
	}
	if job.Status.ErrorResult != nil {
		msgs := []string{job.Status.ErrorResult.Message}
		for _, e := range job.Status.Errors {
			if e != nil && e.Message != job.Status.ErrorResult.Message {
				msgs = append(msgs, e.Message)
			}
		}
		return true, fmt.Errorf("load job %s failed: %s", jobID, strings.Join(msgs, "; "))
	}
	return true, nil
}

// TableSchema mirrors internal.TabularSchema; every column is nullable.
func TableSchema() *bq.TableSchema {
	fields := make([]*bq.TableFieldSchema, 0, len(internal.TabularSchema))
	for _, f := range internal.TabularSchema {
		fields = append(fields, &bq.TableFieldSchema{Name: f.Name, Type: string(f.Type), Mode: "NULLABLE"})
	}
	return &bq.TableSchema{Fields: fields}
}

// EncodeRows renders rows as newline-delimited JSON, null columns omitted.
func EncodeRows(rows []internal.TabularRow) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		if err := enc.Encode(row.Map()); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
