package events

import (
	"encoding/json"
	"fmt"
)

// SetStateChangedData sets the Data field with StateChangedData in a type-safe way.
func (e *SessionEvent) SetStateChangedData(data StateChangedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert StateChangedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetStateChangedData retrieves StateChangedData from the Data field.
func (e *SessionEvent) GetStateChangedData() (*StateChangedData, error) {
	var data StateChangedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse StateChangedData: %w", err)
	}
	return &data, nil
}

// SetDecisionMadeData sets the Data field with DecisionMadeData in a type-safe way.
func (e *SessionEvent) SetDecisionMadeData(data DecisionMadeData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert DecisionMadeData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetDecisionMadeData retrieves DecisionMadeData from the Data field.
func (e *SessionEvent) GetDecisionMadeData() (*DecisionMadeData, error) {
	var data DecisionMadeData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse DecisionMadeData: %w", err)
	}
	return &data, nil
}

// SetPlanCreatedData sets the Data field with PlanCreatedData in a type-safe way.
func (e *SessionEvent) SetPlanCreatedData(data PlanCreatedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert PlanCreatedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetPlanCreatedData retrieves PlanCreatedData from the Data field.
func (e *SessionEvent) GetPlanCreatedData() (*PlanCreatedData, error) {
	var data PlanCreatedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse PlanCreatedData: %w", err)
	}
	return &data, nil
}

// SetResourceUsageData sets the Data field with ResourceUsageData in a type-safe way.
func (e *SessionEvent) SetResourceUsageData(data ResourceUsageData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert ResourceUsageData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetResourceUsageData retrieves ResourceUsageData from the Data field.
func (e *SessionEvent) GetResourceUsageData() (*ResourceUsageData, error) {
	var data ResourceUsageData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ResourceUsageData: %w", err)
	}
	return &data, nil
}

// SetBudgetAlertData sets the Data field with BudgetAlertData in a type-safe way.
func (e *SessionEvent) SetBudgetAlertData(data BudgetAlertData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert BudgetAlertData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetBudgetAlertData retrieves BudgetAlertData from the Data field.
func (e *SessionEvent) GetBudgetAlertData() (*BudgetAlertData, error) {
	var data BudgetAlertData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse BudgetAlertData: %w", err)
	}
	return &data, nil
}

// SetTaskResultData sets the Data field with TaskResultData in a type-safe way.
func (e *SessionEvent) SetTaskResultData(data TaskResultData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert TaskResultData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetTaskResultData retrieves TaskResultData from the Data field.
func (e *SessionEvent) GetTaskResultData() (*TaskResultData, error) {
	var data TaskResultData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse TaskResultData: %w", err)
	}
	return &data, nil
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}
