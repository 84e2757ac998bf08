package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func elasticServer(t *testing.T, status int, got *[]Entry, paths *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		*paths = append(*paths, r.Method+" "+r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var e Entry
		if err := json.Unmarshal(body, &e); err == nil {
			*got = append(*got, e)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestElasticSinkIndexesEntry(t *testing.T) {
	var (
		got   []Entry
		paths []string
	)
	srv := elasticServer(t, http.StatusCreated, &got, &paths)
	sink, err := NewElasticSink(srv.URL, "")
	require.NoError(t, err)

	require.NoError(t, sink.AppendAudit(context.Background(), Entry{ID: "01HX", ModuleKey: "payroll", Action: "read", StatusCode: 200}))
	require.Len(t, paths, 1)
	assert.Equal(t, "PUT /audit-logs/_doc/01HX", paths[0])
	require.Len(t, got, 1)
	assert.Equal(t, "payroll", got[0].ModuleKey)
}

func TestElasticSinkReportsErrorStatus(t *testing.T) {
	var (
		got   []Entry
		paths []string
	)
	srv := elasticServer(t, http.StatusInternalServerError, &got, &paths)
	sink, err := NewElasticSink(srv.URL, "custom")
	require.NoError(t, err)
	assert.Error(t, sink.AppendAudit(context.Background(), Entry{ID: "x"}))
}

func TestNewElasticSinkRequiresURL(t *testing.T) {
	_, err := NewElasticSink(" ", "")
	assert.Error(t, err)
}

func TestKafkaSinkPublishesKeyedByOrg(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != DefaultKafkaTopic {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "org-a" {
			return errors.New("unexpected key " + string(key))
		}
		value, _ := msg.Value.Encode()
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return err
		}
		if e.ModuleKey != "payroll" {
			return errors.New("unexpected module " + e.ModuleKey)
		}
		return nil
	})
	sink, err := NewKafkaSink(producer, "")
	require.NoError(t, err)
	require.NoError(t, sink.AppendAudit(context.Background(), Entry{ID: "1", OrgID: "org-a", PlatformID: "p", ModuleKey: "payroll"}))
	require.NoError(t, sink.Close())
}

func TestKafkaSinkWrapsSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	sink, err := NewKafkaSink(producer, "audit")
	require.NoError(t, err)
	err = sink.AppendAudit(context.Background(), Entry{ID: "1", PlatformID: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, sink.Close())
}
