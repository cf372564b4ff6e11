package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/eauxxs/rgb-std/pkg/checker"
	"github.com/eauxxs/rgb-std/pkg/config"
	"github.com/eauxxs/rgb-std/pkg/containers"
	"github.com/eauxxs/rgb-std/pkg/contract"
	"github.com/eauxxs/rgb-std/pkg/db"
	"github.com/eauxxs/rgb-std/pkg/httpx"
	"github.com/eauxxs/rgb-std/pkg/iface"
	"github.com/eauxxs/rgb-std/pkg/inventory"
	"github.com/eauxxs/rgb-std/pkg/invoice"
	"github.com/eauxxs/rgb-std/pkg/resolver"
	"github.com/eauxxs/rgb-std/services/stashd/internal/store"
)

type appConfig struct {
	ServicePort        string `env:"SERVICE_PORT" envDefault:"8086"`
	DatabaseURL        string `env:"DATABASE_URL,required"`
	BitcoinResolverURL string `env:"BITCOIN_RESOLVER_URL" envDefault:"https://blockstream.info/api"`
	LiquidResolverURL  string `env:"LIQUID_RESOLVER_URL"`
}

func main() {
	var cfg appConfig
	if err := config.ParseEnv(&cfg); err != nil {
		slog.Error("parse config", "error", err)
		os.Exit(1)
	}

	pool := db.MustConnect(cfg.DatabaseURL)
	defer pool.Close()
	st := store.New(pool)
	if err := st.EnsureSchema(context.Background()); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	endpoints := map[contract.Chain]string{contract.ChainBitcoin: cfg.BitcoinResolverURL}
	if cfg.LiquidResolverURL != "" {
		endpoints[contract.ChainLiquid] = cfg.LiquidResolverURL
	}
	chain := resolver.NewHTTP(endpoints)
	inv := inventory.New(st, chain, checker.New(chain, containers.DefaultBounds()))

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Route("/stash", func(api chi.Router) {

		api.Post("/contracts/import", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Consignment containers.Consignment `json:"consignment"`
				Force       bool                   `json:"force"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			importFn := inv.ImportContract
			if req.Force {
				importFn = inv.ImportContractForce
			}
			status, err := importFn(r.Context(), req.Consignment)
			if err != nil {
				writeInventoryError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{
				"request_id":  httpx.NewRequestID(),
				"contract_id": req.Consignment.ContractID(),
				"status":      status,
			})
		})

		api.Post("/transfers/accept", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Consignment containers.Consignment `json:"consignment"`
				Force       bool                   `json:"force"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			acceptFn := inv.AcceptTransfer
			if req.Force {
				acceptFn = inv.AcceptTransferForce
			}
			status, err := acceptFn(r.Context(), req.Consignment)
			if err != nil {
				writeInventoryError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{
				"request_id":  httpx.NewRequestID(),
				"contract_id": req.Consignment.ContractID(),
				"status":      status,
			})
		})

		api.Get("/contracts/{contract_id}", func(w http.ResponseWriter, r *http.Request) {
			contractID, ok := parseContractID(w, r)
			if !ok {
				return
			}
			consignment, err := inv.ExportContract(r.Context(), contractID)
			if err != nil {
				writeInventoryError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{
				"request_id":  httpx.NewRequestID(),
				"consignment": consignment,
			})
		})

		api.Post("/contracts/{contract_id}/transfer", func(w http.ResponseWriter, r *http.Request) {
			contractID, ok := parseContractID(w, r)
			if !ok {
				return
			}
			var req struct {
				Outputs     []contract.OutputSeal `json:"outputs"`
				SecretSeals []contract.SecretSeal `json:"secret_seals"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			consignment, err := inv.Transfer(r.Context(), contractID, req.Outputs, req.SecretSeals)
			if err != nil {
				writeInventoryError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{
				"request_id":  httpx.NewRequestID(),
				"consignment": consignment,
			})
		})

		api.Post("/compose", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Invoice         invoice.Invoice       `json:"invoice"`
				PrevOutputs     []contract.OutputSeal `json:"prev_outputs"`
				BeneficiaryVout *contract.Vout        `json:"beneficiary_vout,omitempty"`
				ChangeVout      *contract.Vout        `json:"change_vout,omitempty"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			allocator := func(contract.ContractID, contract.AssignmentType, iface.VelocityHint) (contract.Vout, bool) {
				if req.ChangeVout == nil {
					return 0, false
				}
				return *req.ChangeVout, true
			}
			batch, err := inv.Compose(r.Context(), req.Invoice, req.PrevOutputs, req.BeneficiaryVout, allocator)
			if err != nil {
				writeInventoryError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{
				"request_id": httpx.NewRequestID(),
				"batch":      batch,
			})
		})

		api.Post("/consume", func(w http.ResponseWriter, r *http.Request) {
			var fascia containers.Fascia
			if err := httpx.ReadJSON(r, &fascia); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			if err := inv.Consume(r.Context(), fascia); err != nil {
				writeInventoryError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID()})
		})

		api.Post("/schemas", func(w http.ResponseWriter, r *http.Request) {
			var schema iface.Schema
			if err := httpx.ReadJSON(r, &schema); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			id, err := inv.ImportSchema(r.Context(), schema)
			if err != nil {
				writeInventoryError(w, err)
				return
			}
			httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "schema_id": id})
		})

		api.Post("/ifaces", func(w http.ResponseWriter, r *http.Request) {
			var ifc iface.Iface
			if err := httpx.ReadJSON(r, &ifc); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			id, err := inv.ImportIface(r.Context(), ifc)
			if err != nil {
				writeInventoryError(w, err)
				return
			}
			httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "iface_id": id})
		})

		api.Post("/impls", func(w http.ResponseWriter, r *http.Request) {
			var impl iface.IfaceImpl
			if err := httpx.ReadJSON(r, &impl); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			id, err := inv.ImportIfaceImpl(r.Context(), impl)
			if err != nil {
				writeInventoryError(w, err)
				return
			}
			httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "impl_id": id})
		})

		api.Post("/suppls", func(w http.ResponseWriter, r *http.Request) {
			var suppl iface.Supplement
			if err := httpx.ReadJSON(r, &suppl); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			id, err := inv.ImportSuppl(r.Context(), suppl)
			if err != nil {
				writeInventoryError(w, err)
				return
			}
			httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "suppl_id": id})
		})

		api.Post("/sigs", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				ContentID  containers.ContentID           `json:"content_id"`
				Signatures map[containers.Identity][]byte `json:"signatures"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			if err := inv.ImportSigs(r.Context(), req.ContentID, req.Signatures); err != nil {
				writeInventoryError(w, err)
				return
			}
			httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID()})
		})

		api.Get("/ifaces/{iface_name}/contracts", func(w http.ResponseWriter, r *http.Request) {
			ids, err := inv.ContractsByIfaceName(r.Context(), chi.URLParam(r, "iface_name"))
			if err != nil {
				writeInventoryError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "contracts": ids})
		})

		api.Post("/seals", func(w http.ResponseWriter, r *http.Request) {
			var seal contract.GraphSeal
			if err := httpx.ReadJSON(r, &seal); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			if err := inv.StoreSealSecret(r.Context(), seal); err != nil {
				writeInventoryError(w, err)
				return
			}
			httpx.WriteJSON(w, 201, map[string]any{
				"request_id": httpx.NewRequestID(),
				"secret":     seal.Conceal(),
			})
		})

		api.Get("/seals", func(w http.ResponseWriter, r *http.Request) {
			seals, err := inv.SealSecrets(r.Context())
			if err != nil {
				writeInventoryError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "seals": seals})
		})
	})

	slog.Info("stashd listening", "port", cfg.ServicePort)
	if err := http.ListenAndServe(":"+cfg.ServicePort, r); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func parseContractID(w http.ResponseWriter, r *http.Request) (contract.ContractID, bool) {
	var contractID contract.ContractID
	if err := contractID.UnmarshalText([]byte(chi.URLParam(r, "contract_id"))); err != nil {
		httpx.WriteError(w, 400, "BAD_CONTRACT_ID", err.Error(), nil)
		return contractID, false
	}
	return contractID, true
}

func writeInventoryError(w http.ResponseWriter, err error) {
	var invErr *inventory.Error
	if !errors.As(err, &invErr) {
		httpx.WriteError(w, 500, "INTERNAL", err.Error(), nil)
		return
	}
	status := 500
	switch invErr.Tier {
	case inventory.TierConnectivity:
		status = 503
	case inventory.TierData:
		status = 422
	}
	httpx.WriteError(w, status, string(invErr.Code), invErr.Message, nil)
}
