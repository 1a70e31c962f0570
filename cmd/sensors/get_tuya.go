package sensors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tuya-sensors/pkg/devices"
	"github.com/tuya-sensors/pkg/errors"
	"github.com/tuya-sensors/pkg/topology"
)

func newGetTuyaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get-tuya DEVICE",
		Short: "Query one device and print its measurements | 查询单个设备",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = rt.logger.Sync() }()

			noUnit, _ := cmd.Flags().GetBool("no-unit")
			if err := getTuya(cmd.Context(), rt.service, args[0], noUnit, cmd.OutOrStdout()); err != nil {
				return report(rt.logger, "device query failed", err)
			}
			return nil
		},
	}
	cmd.Flags().Bool("no-unit", false, "-> Print raw numbers without units | 不输出单位")
	return cmd
}

// getTuya 网关与未知类型设备输出原始 JSON，其余设备按数据点顺序输出 `name: value`
func getTuya(ctx context.Context, svc *devices.Service, name string, noUnit bool, out io.Writer) error {
	dev, ok := svc.Topology().Device(name)
	if !ok {
		return errors.UnknownDevice(name)
	}

	switch dev.DeviceType {
	case topology.TypeGateway:
		raw, err := svc.QueryGateway(ctx, name)
		if err != nil {
			return err
		}
		return printJSON(out, raw)
	case topology.TypeUnknown:
		raw, err := svc.QueryUnknown(ctx, name)
		if err != nil {
			return err
		}
		return printJSON(out, raw)
	}

	var opts []devices.Option
	if noUnit {
		opts = append(opts, devices.WithoutUnits())
	}
	measurements, err := svc.Measurements(ctx, name, opts...)
	if err != nil {
		return err
	}
	for _, dp := range svc.Topology().DataPoints(name) {
		if _, err := fmt.Fprintf(out, "%s: %s\n", dp.Name, render(dp, measurements[dp.Name])); err != nil {
			return err
		}
	}
	return nil
}

// render 不带单位时数值仍按 floatPrecision 定点输出
func render(dp topology.DataPointDef, v any) string {
	if f, ok := v.(float64); ok && dp.FloatPrecision != nil {
		return strconv.FormatFloat(f, 'f', *dp.FloatPrecision, 64)
	}
	return devices.Stringify(v)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
