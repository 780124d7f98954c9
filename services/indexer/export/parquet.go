package export

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/models"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/storage"
)

// Source iterates purchases in sequence order.
type Source interface {
	EachPurchase(ctx context.Context, q storage.PurchaseQuery, fn func(models.Purchase) error) error
}

// Row is the parquet schema of an exported purchase. Amounts are decimal
// strings so unsigned 64-bit values survive readers without UINT_64 support.
type Row struct {
	Seq              int64  `parquet:"name=seq, type=INT64"`
	RequestID        string `parquet:"name=request_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Buyer            string `parquet:"name=buyer, type=BYTE_ARRAY, convertedtype=UTF8"`
	Currency         string `parquet:"name=currency, type=BYTE_ARRAY, convertedtype=UTF8"`
	StableAmount     string `parquet:"name=stable_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	NativeAmount     string `parquet:"name=native_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	AllocationAmount string `parquet:"name=allocation_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	PurchasedAt      int64  `parquet:"name=purchased_at, type=INT64"`
	PurchasedAtISO   string `parquet:"name=purchased_at_iso, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// WritePurchases encodes every purchase matching q as a snappy-compressed
// parquet file on w and returns the number of rows written.
func WritePurchases(ctx context.Context, w io.Writer, src Source, q storage.PurchaseQuery) (int, error) {
	fw := writerfile.NewWriterFile(w)
	pw, err := writer.NewParquetWriter(fw, new(Row), 1)
	if err != nil {
		return 0, fmt.Errorf("export: parquet schema: %w", err)
	}
	pw.RowGroupSize = 16 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	count := 0
	err = src.EachPurchase(ctx, q, func(p models.Purchase) error {
		if err := pw.Write(toRow(p)); err != nil {
			return fmt.Errorf("export: write seq %d: %w", p.Seq, err)
		}
		count++
		return nil
	})
	if err != nil {
		_ = pw.WriteStop()
		return count, err
	}
	if err := pw.WriteStop(); err != nil {
		return count, fmt.Errorf("export: finalize parquet: %w", err)
	}
	return count, nil
}

func toRow(p models.Purchase) Row {
	return Row{
		Seq:              int64(p.Seq),
		RequestID:        p.RequestID,
		Buyer:            p.Buyer,
		Currency:         p.Currency,
		StableAmount:     strconv.FormatUint(uint64(p.StableAmount), 10),
		NativeAmount:     strconv.FormatUint(uint64(p.NativeAmount), 10),
		AllocationAmount: strconv.FormatUint(uint64(p.AllocationAmount), 10),
		PurchasedAt:      p.PurchasedAt,
		PurchasedAtISO:   time.Unix(p.PurchasedAt, 0).UTC().Format(time.RFC3339),
	}
}
