package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// client habla con el API /superadmin. Se loguea una vez por invocación
// y arrastra la cookie de sesión en los requests siguientes.
type client struct {
	BaseURL   string
	Username  string
	Password  string
	OutFormat string // "json" | "text"
	HTTP      *http.Client

	session *http.Cookie
}

func (c *client) login() error {
	body, _ := json.Marshal(map[string]string{"username": c.Username, "password": c.Password})
	status, _, cookies, err := c.raw(http.MethodPost, "/superadmin/login", body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("login falló (status %d)", status)
	}
	for _, ck := range cookies {
		if ck.Value != "" {
			c.session = ck
			return nil
		}
	}
	return fmt.Errorf("login no devolvió cookie de sesión")
}

func (c *client) raw(method, path string, body []byte) (int, []byte, []*http.Cookie, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil {
		req.AddCookie(c.session)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, resp.Cookies(), nil
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	status, b, _, err := c.raw(method, path, body)
	return status, b, err
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	c := &client{
		BaseURL:   envOr("MESADINE_URL", "http://localhost:8080"),
		Username:  envOr("MESADINE_ADMIN_USER", "admin"),
		Password:  envOr("MESADINE_ADMIN_PASS", ""),
		OutFormat: envOr("MESADINE_OUT", "text"),
		HTTP:      &http.Client{Timeout: 30 * time.Second},
	}

	root := &cobra.Command{
		Use:   "mesadinectl",
		Short: "CLI admin para mesadine (solo /superadmin)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.Password == "" {
				return fmt.Errorf("falta password (flag --admin-pass o env MESADINE_ADMIN_PASS)")
			}
			return c.login()
		},
	}
	root.PersistentFlags().StringVar(&c.BaseURL, "url", c.BaseURL, "URL base del API (env MESADINE_URL)")
	root.PersistentFlags().StringVar(&c.Username, "admin-user", c.Username, "usuario superadmin (env MESADINE_ADMIN_USER)")
	root.PersistentFlags().StringVar(&c.Password, "admin-pass", c.Password, "password superadmin (env MESADINE_ADMIN_PASS)")
	root.PersistentFlags().StringVar(&c.OutFormat, "out", c.OutFormat, "formato de salida: text|json")

	root.AddCommand(tenantsCmd(c), reconcileCmd(c), settingsCmd(c))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func tenantsCmd(c *client) *cobra.Command {
	cmd := &cobra.Command{Use: "tenants", Short: "Gestión de tenants"}

	var page, perPage int
	var order string
	list := &cobra.Command{
		Use:   "list",
		Short: "Lista tenants paginados",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/superadmin/tenants?page=%d&per_page=%d&order=%s", page, perPage, order)
			status, body, err := c.do(http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			c.print(status, body)
			return nil
		},
	}
	list.Flags().IntVar(&page, "page", 1, "página")
	list.Flags().IntVar(&perPage, "per-page", 5, "resultados por página")
	list.Flags().StringVar(&order, "order", "desc", "orden por id: asc|desc")

	var spec string
	create := &cobra.Command{
		Use:   "create",
		Short: "Provisiona un tenant (JSON por --spec o stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := []byte(spec)
			if spec == "" {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				body = b
			}
			status, out, err := c.do(http.MethodPost, "/superadmin/tenants", body)
			if err != nil {
				return err
			}
			c.print(status, out)
			return nil
		},
	}
	create.Flags().StringVar(&spec, "spec", "", "JSON del tenant (name, domain, database, ...)")

	get := &cobra.Command{
		Use:   "get ID",
		Args:  cobra.ExactArgs(1),
		Short: "Muestra un tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := c.do(http.MethodGet, "/superadmin/tenants/"+args[0], nil)
			if err != nil {
				return err
			}
			c.print(status, body)
			return nil
		},
	}

	var updateSpec string
	update := &cobra.Command{
		Use:   "update ID",
		Args:  cobra.ExactArgs(1),
		Short: "Actualiza campos administrables",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := c.do(http.MethodPut, "/superadmin/tenants/"+args[0], []byte(updateSpec))
			if err != nil {
				return err
			}
			c.print(status, body)
			return nil
		},
	}
	update.Flags().StringVar(&updateSpec, "spec", "", "JSON con los campos a actualizar")
	_ = update.MarkFlagRequired("spec")

	del := &cobra.Command{
		Use:   "delete ID",
		Args:  cobra.ExactArgs(1),
		Short: "Baja definitiva: registro y base de datos",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := c.do(http.MethodDelete, "/superadmin/tenants/"+args[0], nil)
			if err != nil {
				return err
			}
			c.print(status, body)
			return nil
		},
	}

	var action string
	statusCmd := &cobra.Command{
		Use:   "status ID",
		Args:  cobra.ExactArgs(1),
		Short: "Activa o deshabilita un tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]string{"action": action})
			status, out, err := c.do(http.MethodPost, "/superadmin/tenants/"+args[0]+"/status", body)
			if err != nil {
				return err
			}
			c.print(status, out)
			return nil
		},
	}
	statusCmd.Flags().StringVar(&action, "action", "activate", "activate|disable")

	cmd.AddCommand(list, create, get, update, del, statusCmd)
	return cmd
}

func reconcileCmd(c *client) *cobra.Command {
	var drop bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compara catálogo físico contra registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/superadmin/reconcile"
			if drop {
				path += "?drop=true"
			}
			status, body, err := c.do(http.MethodPost, path, nil)
			if err != nil {
				return err
			}
			c.print(status, body)
			return nil
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "dropea las bases huérfanas (destructivo)")
	return cmd
}

func settingsCmd(c *client) *cobra.Command {
	cmd := &cobra.Command{Use: "settings", Short: "Settings de la cuenta operadora"}

	get := &cobra.Command{
		Use:   "get",
		Short: "Muestra los settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := c.do(http.MethodGet, "/superadmin/settings", nil)
			if err != nil {
				return err
			}
			c.print(status, body)
			return nil
		},
	}

	var spec string
	set := &cobra.Command{
		Use:   "set",
		Short: "Actualiza los settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := c.do(http.MethodPut, "/superadmin/settings", []byte(spec))
			if err != nil {
				return err
			}
			c.print(status, body)
			return nil
		},
	}
	set.Flags().StringVar(&spec, "spec", "", "JSON: company_name, company_website, email")
	_ = set.MarkFlagRequired("spec")

	cmd.AddCommand(get, set)
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
