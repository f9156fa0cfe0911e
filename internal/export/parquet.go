// Package export writes the weekly training-load tables as Parquet snapshots.
package export

import (
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"paceload/internal/store"
)

// WeekRow is one athlete-week of the snapshot.
type WeekRow struct {
	AthleteID        int64    `parquet:"name=athlete_id, type=INT64"`
	WeekStart        string   `parquet:"name=week_start, type=BYTE_ARRAY, convertedtype=UTF8"`
	NumZones         int32    `parquet:"name=num_zones, type=INT32"`
	ActivityCount    int32    `parquet:"name=activity_count, type=INT32"`
	Zone1Minutes     float64  `parquet:"name=zone_1_minutes, type=DOUBLE"`
	Zone2Minutes     float64  `parquet:"name=zone_2_minutes, type=DOUBLE"`
	Zone3Minutes     float64  `parquet:"name=zone_3_minutes, type=DOUBLE"`
	Zone4Minutes     float64  `parquet:"name=zone_4_minutes, type=DOUBLE"`
	Zone5Minutes     float64  `parquet:"name=zone_5_minutes, type=DOUBLE"`
	Zone6Minutes     float64  `parquet:"name=zone_6_minutes, type=DOUBLE"`
	Zone7Minutes     float64  `parquet:"name=zone_7_minutes, type=DOUBLE"`
	Zone8Minutes     float64  `parquet:"name=zone_8_minutes, type=DOUBLE"`
	Zone9Minutes     float64  `parquet:"name=zone_9_minutes, type=DOUBLE"`
	Zone10Minutes    float64  `parquet:"name=zone_10_minutes, type=DOUBLE"`
	TotalMinutes     float64  `parquet:"name=total_minutes, type=DOUBLE"`
	TotalLoadMinutes *float64 `parquet:"name=total_load_minutes, type=DOUBLE, repetitiontype=OPTIONAL"`
	TotalMonotony    *float64 `parquet:"name=total_monotony, type=DOUBLE, repetitiontype=OPTIONAL"`
	TotalStrain      *float64 `parquet:"name=total_strain, type=DOUBLE, repetitiontype=OPTIONAL"`
}

type weekKey struct {
	athleteID int64
	week      string
}

// Rows joins weekly zone times with their monotony rows. Weeks without a
// monotony row leave the load columns null.
func Rows(weeks []store.WeeklyZoneTime, loads []store.WeeklyMonotonyStrain) []WeekRow {
	byWeek := make(map[weekKey]*store.WeeklyMonotonyStrain, len(loads))
	for i := range loads {
		l := &loads[i]
		byWeek[weekKey{l.AthleteID, store.FormatDate(l.WeekStart)}] = l
	}

	rows := make([]WeekRow, 0, len(weeks))
	for _, w := range weeks {
		z := w.ZoneMinutes
		row := WeekRow{
			AthleteID:     w.AthleteID,
			WeekStart:     store.FormatDate(w.WeekStart),
			NumZones:      int32(w.NumZones),
			ActivityCount: int32(w.ActivityCount),
			Zone1Minutes:  z[0],
			Zone2Minutes:  z[1],
			Zone3Minutes:  z[2],
			Zone4Minutes:  z[3],
			Zone5Minutes:  z[4],
			Zone6Minutes:  z[5],
			Zone7Minutes:  z[6],
			Zone8Minutes:  z[7],
			Zone9Minutes:  z[8],
			Zone10Minutes: z[9],
			TotalMinutes:  w.TotalMinutes,
		}
		if l, ok := byWeek[weekKey{w.AthleteID, row.WeekStart}]; ok {
			load, mono, strain := l.TotalLoadMinutes, l.TotalMonotony, l.TotalStrain
			row.TotalLoadMinutes, row.TotalMonotony, row.TotalStrain = &load, &mono, &strain
		}
		rows = append(rows, row)
	}
	return rows
}

// MarshalWeekly encodes the snapshot as a SNAPPY-compressed Parquet file.
func MarshalWeekly(weeks []store.WeeklyZoneTime, loads []store.WeeklyMonotonyStrain) ([]byte, error) {
	fw := buffer.NewBufferFile()
	if err := writeRows(fw, Rows(weeks, loads)); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

var newFileWriter = local.NewLocalFileWriter

// WriteWeeklyParquet writes the snapshot to path and returns the row count.
// The file is written beside path and renamed into place, so a failed export
// leaves any previous snapshot intact.
func WriteWeeklyParquet(path string, weeks []store.WeeklyZoneTime, loads []store.WeeklyMonotonyStrain) (int, error) {
	tmp := path + ".tmp"
	fw, err := newFileWriter(tmp)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", tmp, err)
	}
	rows := Rows(weeks, loads)
	if err := writeRows(fw, rows); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("replacing %s: %w", path, err)
	}
	return len(rows), nil
}

func writeRows(fw source.ParquetFile, rows []WeekRow) error {
	pw, err := writer.NewParquetWriter(fw, new(WeekRow), 4)
	if err != nil {
		fw.Close()
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			fw.Close()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}
