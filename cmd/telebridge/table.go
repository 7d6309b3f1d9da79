package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/srg/telebridge/internal/bledb"
	"github.com/srg/telebridge/internal/gatt"
	"github.com/srg/telebridge/internal/profile"
)

// tableCmd represents the table command
var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the attribute table of the configured variant",
	Long: `Builds the attribute table the bridge would expose and prints its
services, characteristics, handles, capacities and the advertising payloads.`,
	Args: cobra.NoArgs,
	RunE: runTable,
}

func init() {
	addProfileFlags(tableCmd)
	tableCmd.Flags().Bool("json", false, "Output as JSON")
}

type tableCharacteristic struct {
	Handle     gatt.Handle `json:"handle"`
	UUID       string      `json:"uuid"`
	Name       string      `json:"name,omitempty"`
	Properties string      `json:"properties"`
	Capacity   int         `json:"capacity"`
	Fixed      bool        `json:"fixed_length"`
	Descriptor string      `json:"descriptor,omitempty"`
}

type tableService struct {
	UUID            string                `json:"uuid"`
	Name            string                `json:"name,omitempty"`
	Characteristics []tableCharacteristic `json:"characteristics"`
}

type tableDocument struct {
	Name         string         `json:"name"`
	Scheme       string         `json:"scheme"`
	Services     []tableService `json:"services"`
	AdvData      string         `json:"adv_data"`
	ScanResponse string         `json:"scan_response"`
}

func runTable(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg, "verbose")
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	p, err := profile.Build(profileOptions(cfg, logger))
	if err != nil {
		return err
	}
	doc, err := describeTable(cfg.DeviceName, p)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	return writeTableText(cmd.OutOrStdout(), doc)
}

func describeTable(name string, p *profile.Profile) (tableDocument, error) {
	doc := tableDocument{Name: name, Scheme: string(p.Scheme)}

	infos := p.Table.Characteristics()
	for _, svc := range p.Table.Services() {
		ts := tableService{UUID: svc.UUID, Name: svc.Name}
		for _, h := range svc.Handles {
			info := infos[h]
			tc := tableCharacteristic{
				Handle:     info.Handle,
				UUID:       info.UUID,
				Name:       info.Name,
				Properties: info.Properties.String(),
				Capacity:   info.Capacity,
				Fixed:      info.FixedLength,
			}
			if info.Properties.Has(gatt.PropNotify) {
				tc.Descriptor = bledb.LookupDescriptor(gatt.DescriptorClientConfig)
			}
			ts.Characteristics = append(ts.Characteristics, tc)
		}
		doc.Services = append(doc.Services, ts)
	}

	adv := gatt.NewAdvertisement(name, p.Table)
	sr, err := adv.ScanResponse()
	if err != nil {
		return doc, err
	}
	doc.AdvData = hex.EncodeToString(adv.AdvertisingData())
	doc.ScanResponse = hex.EncodeToString(sr)
	return doc, nil
}

func writeTableText(w io.Writer, doc tableDocument) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Device: %s (scheme %s)\n", doc.Name, doc.Scheme)
	for _, svc := range doc.Services {
		fmt.Fprintf(&sb, "\nService %s %s\n", svc.UUID, svc.Name)
		for _, c := range svc.Characteristics {
			size := fmt.Sprintf("<=%d B", c.Capacity)
			if c.Fixed {
				size = fmt.Sprintf("%d B", c.Capacity)
			}
			fmt.Fprintf(&sb, "  [%d] %s %-28s %-18s %s\n", c.Handle, c.UUID, c.Name, c.Properties, size)
			if c.Descriptor != "" {
				fmt.Fprintf(&sb, "      %s %s\n", gatt.DescriptorClientConfig, c.Descriptor)
			}
		}
	}
	fmt.Fprintf(&sb, "\nAdvertising data: %s\n", doc.AdvData)
	fmt.Fprintf(&sb, "Scan response:    %s\n", doc.ScanResponse)
	_, err := io.WriteString(w, sb.String())
	return err
}
